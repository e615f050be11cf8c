package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/output"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll submitted upstream PRs for state changes",
	Long: `Probe every open upstream PR and record merges, closes, and review
decisions. Merges and actionable review feedback raise notifications;
terminal PRs are never probed again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return pollRun(cmd)
	},
}

var pollListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked upstream submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return pollListRun(cmd)
	},
}

func init() {
	pollCmd.AddCommand(pollListCmd)
	rootCmd.AddCommand(pollCmd)
}

func pollRun(cmd *cobra.Command) error {
	if dryRun {
		ui.DryRunMsg("Would poll all open upstream submissions")
		return nil
	}

	engine, err := getPoller()
	if err != nil {
		return err
	}

	summary, err := engine.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("poll submissions: %w", err)
	}

	ui.Success("Polled %d PRs (%d skipped as terminal)", summary.Polled, summary.Skipped)
	if summary.Merged > 0 {
		ui.Info("  merged:   %d", summary.Merged)
	}
	if summary.Closed > 0 {
		ui.Info("  closed:   %d", summary.Closed)
	}
	if summary.Feedback > 0 {
		ui.Info("  feedback: %d", summary.Feedback)
	}
	if summary.Failed > 0 {
		ui.Warning("  failed probes: %d", summary.Failed)
	}
	return nil
}

func pollListRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	prs, err := p.SubmittedPRs(cmd.Context())
	if err != nil {
		return err
	}

	if len(prs) == 0 {
		ui.Info("No upstream submissions tracked.")
		return nil
	}

	table := ui.Table([]string{"Repo", "PR", "State", "Review", "Submitted"})
	for _, pr := range prs {
		number := "-"
		if pr.PRNumber != nil {
			number = "#" + strconv.Itoa(*pr.PRNumber)
		}
		review := pr.ReviewDecision
		if review == "" {
			review = "-"
		}
		_ = table.Append([]string{
			output.Cyan(pr.OriginSlug),
			number,
			output.PRStateColor(string(pr.State)),
			review,
			pr.SubmittedAt.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}
