package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the tables and indexes",
	Long: `Migrate creates the documents and tags tables when missing, adds missing
secondary indexes and records the layout version. Running it again is a no-op.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		if err := s.Migrate(ctx); err != nil {
			fatal("Error migrating", err)
		}
		fmt.Printf("Tables ready: %s, %s\n", cfg.Dynamo.DocumentsTable, cfg.Dynamo.TagsTable)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
