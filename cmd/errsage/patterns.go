package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmorgan/errsage/internal/pattern"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage the local pattern library",
	}
	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsImportCmd())
	return cmd
}

func patternsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all loaded patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "ID\tCATEGORY\tTHRESHOLD\tSUCCESS RATE\tFIXES")
			for _, p := range a.library.Patterns() {
				fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%d\n",
					p.ID, p.Category, p.ConfidenceThreshold, p.SuccessRate, len(p.FixTemplates))
			}
			return nil
		},
	}
}

func patternsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Validate a pattern file for use via patterns.file",
		Long: `Load and validate a YAML pattern file. Valid files can be made active
by setting patterns.file in the config; they are merged after the builtin
patterns at startup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns, err := pattern.LoadFile(args[0])
			if err != nil {
				return err
			}

			// Compiling the library validates every signature.
			if _, err := pattern.NewLibrary(patterns); err != nil {
				return err
			}

			fmt.Printf("Validated %d patterns in %s. Set patterns.file to activate them.\n", len(patterns), args[0])
			return nil
		},
	}
}
