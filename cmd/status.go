package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/models"
	"github.com/wolffm/dispatch/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline status across all five stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusOverviewRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func statusOverviewRun(ctx context.Context) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	watchlist, err := s.ListWatchlist(ctx)
	if err != nil {
		return err
	}
	selected, err := s.ListSelectedIssues(ctx)
	if err != nil {
		return err
	}
	assignments, err := s.ListAssignments(ctx)
	if err != nil {
		return err
	}
	ready, err := s.ListReadyToSubmit(ctx)
	if err != nil {
		return err
	}
	submitted, err := s.ListSubmittedPRs(ctx)
	if err != nil {
		return err
	}

	var open, merged, closed int
	for _, pr := range submitted {
		switch pr.State {
		case models.PRStateMerged:
			merged++
		case models.PRStateClosed:
			closed++
		default:
			open++
		}
	}

	table := ui.Table([]string{"Stage", "Count", "Detail"})
	_ = table.Append([]string{"Watchlist", strconv.Itoa(len(watchlist)), "repos being mined"})
	_ = table.Append([]string{"Selected", strconv.Itoa(len(selected)), "issues picked for contribution"})
	_ = table.Append([]string{"Assigned", strconv.Itoa(len(assignments)), "issues handed to the agent"})
	_ = table.Append([]string{"Ready", strconv.Itoa(len(ready)), "branches queued for submission"})
	_ = table.Append([]string{"Submitted", strconv.Itoa(len(submitted)),
		output.Yellow(strconv.Itoa(open)+" open") + " / " +
			output.Green(strconv.Itoa(merged)+" merged") + " / " +
			output.Red(strconv.Itoa(closed)+" closed")})
	_ = table.Render()

	if len(watchlist) == 0 {
		ui.Info("Get started with 'dispatch target add <owner> <repo>'.")
	}
	return nil
}
