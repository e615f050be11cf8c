package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/output"
	"github.com/wolffm/dispatch/internal/pipeline"
)

var issuesMinCVS int

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Score and rank open issues across watchlist targets",
	Long: `Score every open issue in the watchlist repos and rank them by
contribution viability (CVS, 0-100). Claimed issues are filtered out
when an aggregator is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issuesListRun(cmd)
	},
}

var issuesSelectCmd = &cobra.Command{
	Use:   "select <owner/repo> <number>",
	Short: "Mark an issue as selected for contribution",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid issue number %q", args[1])
		}
		return issuesSelectRun(cmd, args[0], number)
	},
}

func init() {
	issuesCmd.Flags().IntVar(&issuesMinCVS, "min-cvs", 0, "Hide issues scoring below this CVS")
	issuesCmd.AddCommand(issuesSelectCmd)
	rootCmd.AddCommand(issuesCmd)
}

func issuesListRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	issues, err := p.ScoredIssues(cmd.Context())
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Repo", "Issue", "CVS", "Tier", "Title"})
	shown := 0
	for _, is := range issues {
		if is.CVS < issuesMinCVS {
			continue
		}
		shown++
		_ = table.Append([]string{
			output.Cyan(is.RepoSlug),
			"#" + strconv.Itoa(is.Number),
			output.CVSColor(is.CVS),
			output.TierColor(string(is.CVSTier)),
			truncate(is.Title, 60),
		})
	}

	if shown == 0 {
		ui.Info("No scorable issues found. Add targets with 'dispatch target add'.")
		return nil
	}

	_ = table.Render()
	return nil
}

func issuesSelectRun(cmd *cobra.Command, originSlug string, number int) error {
	if _, _, ok := pipeline.SplitSlug(originSlug); !ok {
		return fmt.Errorf("invalid repo %q: expected owner/repo", originSlug)
	}

	p, err := getPipeline()
	if err != nil {
		return err
	}

	// Pull title/url from the current scoring pass when available.
	title, url := "", ""
	if issues, err := p.ScoredIssues(cmd.Context()); err == nil {
		for _, is := range issues {
			if is.RepoSlug == originSlug && is.Number == number {
				title, url = is.Title, is.URL
				break
			}
		}
	}

	if dryRun {
		ui.DryRunMsg("Would select %s#%d", originSlug, number)
		return nil
	}

	sel, err := p.SelectIssue(cmd.Context(), originSlug, number, title, url)
	if errors.Is(err, pipeline.ErrAlreadySelected) {
		ui.Warning("%s#%d is already selected", originSlug, number)
		return nil
	}
	if err != nil {
		return fmt.Errorf("select issue: %w", err)
	}

	ui.Success("Selected %s#%d", sel.OriginSlug, sel.IssueNumber)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
