package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cleanupClassCmd = &cobra.Command{
	Use:   "cleanup-class [class-id]",
	Short: "Remove a class id from every text of a tenant",
	Long: `Cleanup-class finishes an interrupted class deletion by stripping the class id
from every text that still references it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		report, err := s.CleanupClassReferences(ctx, tenant, args[0])
		if err != nil {
			fatal("Error cleaning up class", err)
		}
		for _, e := range report.Errors {
			fmt.Printf("FAILED %v\n", e)
		}
		fmt.Printf("Updated %d texts, %d failed\n", report.Processed, report.Failed)
		if report.Failed > 0 {
			os.Exit(2)
		}
	},
}

func init() {
	addTenantFlag(cleanupClassCmd)
	rootCmd.AddCommand(cleanupClassCmd)
}
