package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wolffm/dispatch/internal/output"
	"github.com/wolffm/dispatch/internal/pipeline"
)

var assignTitle string

var assignCmd = &cobra.Command{
	Use:   "assign <owner/repo> <issue_number>",
	Short: "Fork a repo and hand an issue to the coding agent",
	Long: `Fork the upstream repo (if not already forked), wait for the fork
to become ready, then open a context issue on the fork describing the
upstream issue and assign it to the coding agent. Idempotent: an issue
that already has an assignment is never re-dispatched.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid issue number %q", args[1])
		}
		return assignRun(cmd, args[0], number)
	},
}

var assignListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recorded assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignListRun(cmd)
	},
}

func init() {
	assignCmd.Flags().StringVar(&assignTitle, "title", "", "Upstream issue title (fetched from scoring pass when omitted)")
	assignCmd.AddCommand(assignListCmd)
	rootCmd.AddCommand(assignCmd)
}

func assignRun(cmd *cobra.Command, originSlug string, number int) error {
	owner, repo, ok := pipeline.SplitSlug(originSlug)
	if !ok {
		return fmt.Errorf("invalid repo %q: expected owner/repo", originSlug)
	}

	p, err := getPipeline()
	if err != nil {
		return err
	}

	title := assignTitle
	if title == "" {
		if issues, err := p.ScoredIssues(cmd.Context()); err == nil {
			for _, is := range issues {
				if is.RepoSlug == originSlug && is.Number == number {
					title = is.Title
					break
				}
			}
		}
	}

	if dryRun {
		ui.DryRunMsg("Would fork %s and assign issue #%d to the agent", originSlug, number)
		return nil
	}

	ui.Info("Forking %s and dispatching #%d...", originSlug, number)

	a, err := p.ForkAndAssign(cmd.Context(), owner, repo, number, title)
	if errors.Is(err, pipeline.ErrAlreadyAssigned) {
		ui.Warning("%s#%d already assigned (fork issue #%d)", originSlug, number, a.ForkIssueNumber)
		return nil
	}
	if err != nil {
		return fmt.Errorf("fork and assign: %w", err)
	}

	ui.Success("Assigned %s#%d to the agent via fork issue #%d", originSlug, number, a.ForkIssueNumber)
	if a.ForkIssueURL != "" {
		ui.Info("  %s", a.ForkIssueURL)
	}
	return nil
}

func assignListRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	assignments, err := p.Assignments(cmd.Context())
	if err != nil {
		return err
	}

	if len(assignments) == 0 {
		ui.Info("No assignments yet. Use 'dispatch assign <owner/repo> <number>'.")
		return nil
	}

	table := ui.Table([]string{"Repo", "Issue", "Fork Issue", "Assigned"})
	for _, a := range assignments {
		_ = table.Append([]string{
			output.Cyan(a.OriginSlug),
			"#" + strconv.Itoa(a.IssueNumber),
			"#" + strconv.Itoa(a.ForkIssueNumber),
			a.AssignedAt.Format("2006-01-02 15:04"),
		})
	}
	_ = table.Render()
	return nil
}
