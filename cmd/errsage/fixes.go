package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmorgan/errsage/internal/model"
)

func fixesCmd() *cobra.Command {
	var (
		targetContext string
		riskTolerance float64
	)

	cmd := &cobra.Command{
		Use:   "fixes <pattern-id>",
		Short: "Show known fixes and preventions for a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.SuggestFixes(ctx, args[0], targetContext, riskTolerance)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&targetContext, "context", "", "only suggest fixes applicable to this context")
	cmd.Flags().Float64Var(&riskTolerance, "risk-tolerance", 0, "drop fixes with a success rate below 100 minus this (0 = keep all)")
	return cmd
}

func outcomeCmd() *cobra.Command {
	var (
		note              string
		resolutionMinutes float64
	)

	cmd := &cobra.Command{
		Use:   "outcome <pattern-id> <success|partial|failure>",
		Short: "Report whether an applied fix worked",
		Long: `Feed the result of an applied fix back into the system. Success raises
the pattern's confidence and success rate; failure lowers them, which
eventually ages ineffective solutions out of the cache.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			outcome := model.Outcome(args[1])
			if !outcome.Valid() {
				return fmt.Errorf("invalid outcome %q: use success, partial, or failure", args[1])
			}

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ack, err := a.engine.RecordOutcome(ctx, args[0], outcome, note, resolutionMinutes)
			if err != nil {
				return err
			}
			return printJSON(ack)
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "free-form note about the outcome")
	cmd.Flags().Float64Var(&resolutionMinutes, "resolution-minutes", 0, "how long the fix took to apply")
	return cmd
}

func scanCmd() *cobra.Command {
	var riskThreshold float64

	cmd := &cobra.Command{
		Use:   "scan <change-description>...",
		Short: "Scan proposed changes against known failure patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.ScanRisk(ctx, args, riskThreshold)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().Float64Var(&riskThreshold, "risk-threshold", 0, "risk score that forces a review (0 = default of 50)")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		target string
		period string
		depth  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate an effectiveness and budget report",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.engine.Report(ctx, target, period, depth)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().StringVar(&target, "target", "team", "report audience")
	cmd.Flags().StringVar(&period, "period", "weekly", "reporting period label")
	cmd.Flags().StringVar(&depth, "depth", "summary", "report depth (summary, detailed)")
	return cmd
}
