package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/pipeline"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <owner/repo> <pr_number>",
	Short: "Merge an agent PR on the fork and queue it for submission",
	Long: `Squash-merge the agent's pull request on our fork (marking it ready
first if it is still a draft) and queue the branch for upstream
submission.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid PR number %q", args[1])
		}
		return mergeRun(cmd, args[0], number)
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}

func mergeRun(cmd *cobra.Command, originSlug string, number int) error {
	_, repo, ok := pipeline.SplitSlug(originSlug)
	if !ok {
		return fmt.Errorf("invalid repo %q: expected owner/repo", originSlug)
	}

	p, err := getPipeline()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would merge fork PR #%d for %s", number, originSlug)
		return nil
	}

	ui.Info("Merging fork PR #%d for %s...", number, originSlug)

	item, err := p.MergeForkPR(cmd.Context(), originSlug, repo, number)
	if err != nil {
		return fmt.Errorf("merge fork PR: %w", err)
	}

	ui.Success("Merged %s into the fork, queued for submission", item.Branch)
	ui.Info("  submit with: dispatch submit %s %s", originSlug, item.Branch)
	return nil
}
