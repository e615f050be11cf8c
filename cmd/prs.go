package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/output"
)

var prsCmd = &cobra.Command{
	Use:   "prs",
	Short: "List agent pull requests across forks",
	Long:  "List open pull requests the agent has raised on forked repos, newest first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prsListRun(cmd)
	},
}

func init() {
	rootCmd.AddCommand(prsCmd)
}

func prsListRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	prs, err := p.ForkPRs(cmd.Context())
	if err != nil {
		return err
	}

	if len(prs) == 0 {
		ui.Info("No agent PRs on any fork.")
		return nil
	}

	table := ui.Table([]string{"Repo", "PR", "Branch", "Diff", "Status", "Title"})
	for _, pr := range prs {
		status := "ready"
		if pr.IsDraft {
			status = output.Yellow("draft")
		}
		_ = table.Append([]string{
			output.Cyan(pr.OriginSlug),
			"#" + strconv.Itoa(pr.Number),
			pr.Branch,
			fmt.Sprintf("+%d/-%d", pr.Additions, pr.Deletions),
			status,
			truncate(pr.Title, 50),
		})
	}
	_ = table.Render()
	return nil
}
