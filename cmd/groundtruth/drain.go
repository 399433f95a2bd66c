package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var drainTenantCmd = &cobra.Command{
	Use:   "drain-tenant",
	Short: "Delete every document of a tenant",
	Long: `Drain-tenant deletes the tenant's documents page by page. Documents that fail
to delete are reported and left in place; run the command again to retry them.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		report, err := s.DeleteTenant(ctx, tenant)
		if err != nil {
			fatal("Error draining tenant", err)
		}
		for _, e := range report.Errors {
			fmt.Printf("FAILED %v\n", e)
		}
		fmt.Printf("Deleted %d documents, %d failed\n", report.Processed, report.Failed)
		if report.Failed > 0 {
			os.Exit(2)
		}
	},
}

func init() {
	addTenantFlag(drainTenantCmd)
	rootCmd.AddCommand(drainTenantCmd)
}
