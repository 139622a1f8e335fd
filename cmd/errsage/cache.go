package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the durable solution cache",
	}
	cmd.AddCommand(cacheStatsCmd())
	cmd.AddCommand(cacheCleanupCmd())
	cmd.AddCommand(cacheExportCmd())
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache size and savings statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.cache.Statistics(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func cacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale and ineffective cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			removed, err := a.cache.Cleanup(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d cache entries.\n", removed)
			return nil
		},
	}
}

func cacheExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all cached solutions as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			solutions, err := a.store.ListSolutions(ctx)
			if err != nil {
				return fmt.Errorf("failed to list solutions: %w", err)
			}

			if output == "" || output == "-" {
				return printJSON(solutions)
			}

			data, err := json.MarshalIndent(solutions, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal solutions: %w", err)
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Printf("Exported %d solutions to %s\n", len(solutions), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}
