package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect send runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs (requires database.enabled)",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the latest progress of a run (requires redis.enabled across processes)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Runs == nil {
		return errors.New("run history is not enabled (database.enabled)")
	}

	runs, err := a.Runs.ListRuns(context.Background(), runsLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tSENT\tFAILED\tTOTAL\tSUBJECT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Status, r.Succeeded, r.Failed, r.Total, r.Subject)
	}
	return tw.Flush()
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.Progress.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d/%d sent, %d failed (%.0f%%)\n%s\n",
		p.RunID, p.Status, p.Sent, p.Total, p.Failed, p.Percent()*100, p.Message)
	return nil
}
