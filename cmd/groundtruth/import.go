package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/groundtruth/store"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import labelled texts from a YAML file",
	Long: `Import reads a YAML list of entries, each with a text and the names of its
classes. Missing classes are created and existing texts gain only the classes
they lack, so importing the same file twice changes nothing.

  - text: "win a free cruise"
    classes: [spam, promo]`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := readEntries(args[0])
		if err != nil {
			fatal("Error reading import file", err)
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		report, err := s.Import(ctx, tenant, entries)
		if err != nil {
			fatal("Error importing", err)
		}
		for _, res := range report.Results {
			if res.Failed() {
				fmt.Printf("FAILED %q: %v\n", res.Text, res.AllErrors())
				continue
			}
			status := "updated"
			if res.Created {
				status = "created"
			}
			fmt.Printf("%s %s (%d new classes)\n", status, res.TextID, res.CreatedClasses())
		}
		fmt.Printf("Imported %d entries, %d failed\n", report.Succeeded, report.Failed)
		if report.Failed > 0 {
			os.Exit(2)
		}
	},
}

func readEntries(path string) ([]store.ImportEntry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []store.ImportEntry
	if err := yaml.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

func init() {
	addTenantFlag(importCmd)
	rootCmd.AddCommand(importCmd)
}
