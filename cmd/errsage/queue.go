package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the escalation queue",
	}
	cmd.AddCommand(queueStatusCmd())
	return cmd
}

func queueStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queued items and the current budget position",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			status := a.sched.CheckBudget()
			fmt.Printf("Budget: %.2f of %.2f remaining today, %d/%d calls used\n",
				status.RemainingBudget, status.DailyCeiling,
				status.CallsMadeToday, a.cfg.Budget.DailyCallCap)
			if !status.CanProceed {
				fmt.Println("Dispatch is currently blocked; queued items wait for the next window.")
			}

			items := a.sched.Snapshot()
			if len(items) == 0 {
				fmt.Println("Queue is empty.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintln(w, "POSITION\tPRIORITY\tMESSAGE\tEST. COST\tRETRIES")
			for i, item := range items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%d\n",
					i+1, item.Priority, truncate(item.Error.Message, 60),
					item.EstimatedCost, item.RetryCount)
			}
			return nil
		},
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
