package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmorgan/errsage/internal/model"
)

func analyzeCmd() *cobra.Command {
	var (
		depth        string
		crossContext bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a batch of errors from a JSON file or stdin",
		Long: `Classify every error in the input. Depending on --depth, errors the
classifier cannot resolve are escalated in a single external call, budget
permitting. Input is a JSON array of error objects.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			analysisDepth := model.AnalysisDepth(depth)
			switch analysisDepth {
			case model.DepthLocalOnly, model.DepthEscalateIfNeeded, model.DepthComprehensive:
			default:
				return fmt.Errorf("invalid depth %q: use local_only, escalate_if_needed, or comprehensive", depth)
			}

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			errs, err := readErrorContexts(path)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.AnalyzeBatch(ctx, errs, analysisDepth, crossContext)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&depth, "depth", string(model.DepthEscalateIfNeeded), "analysis depth (local_only, escalate_if_needed, comprehensive)")
	cmd.Flags().BoolVar(&crossContext, "cross-context", false, "ask for correlations across the batch (implied by comprehensive depth)")
	return cmd
}

func escalateCmd() *cobra.Command {
	var budgetLimit float64

	cmd := &cobra.Command{
		Use:   "escalate [file]",
		Short: "Send errors straight to external analysis",
		Long: `Bypass the queue and analyze the input errors now. The spend still goes
through the budget ledger; --budget-limit caps what this call may cost.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			errs, err := readErrorContexts(path)
			if err != nil {
				return err
			}

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.engine.EscalateExternal(ctx, errs, budgetLimit)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().Float64Var(&budgetLimit, "budget-limit", 0, "maximum spend for this call (0 = daily limit)")
	return cmd
}
