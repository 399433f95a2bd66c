package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jacentio/groundtruth/internal/config"
	"github.com/jacentio/groundtruth/store"
)

var (
	configPath string
	verbose    bool
	tenant     string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "groundtruth",
	Short: "Operate the tenant-scoped ground-truth document store",
	Long: `groundtruth manages classes and labelled texts stored in DynamoDB.
Settings come from --config and GROUNDTRUTH_* environment variables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv(config.EnvPrefix+"CONFIG"), "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// addTenantFlag registers the required --tenant flag on cmd.
func addTenantFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant the command operates on")
	_ = cmd.MarkFlagRequired("tenant")
}

// openStore builds the store from the loaded configuration.
func openStore(ctx context.Context) *store.Store {
	s, err := cfg.Open(ctx, slog.Default(), prometheus.DefaultRegisterer)
	if err != nil {
		fatal("Error initializing store", err)
	}
	return s
}
