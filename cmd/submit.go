package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wolffm/dispatch/internal/llm"
	"github.com/wolffm/dispatch/internal/output"
	"github.com/wolffm/dispatch/internal/pipeline"
)

var (
	submitTitle     string
	submitBody      string
	submitDraftBody bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <owner/repo> <branch>",
	Short: "Open an upstream PR from a merged fork branch",
	Long: `Submit a queued fork branch as a pull request against the upstream
repo. The PR title and body default to the queued values; --draft-body
asks the LLM to write them instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitRun(cmd, args[0], args[1])
	},
}

var submitQueueCmd = &cobra.Command{
	Use:     "queue",
	Aliases: []string{"ls"},
	Short:   "List branches queued for upstream submission",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submitQueueRun(cmd)
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "PR title (defaults to the queued fork PR title)")
	submitCmd.Flags().StringVar(&submitBody, "body", "", "PR body (defaults to a summary of the assignment)")
	submitCmd.Flags().BoolVar(&submitDraftBody, "draft-body", false, "Draft the PR title and body with the LLM")
	submitCmd.AddCommand(submitQueueCmd)
	rootCmd.AddCommand(submitCmd)
}

func submitRun(cmd *cobra.Command, originSlug, branch string) error {
	if _, _, ok := pipeline.SplitSlug(originSlug); !ok {
		return fmt.Errorf("invalid repo %q: expected owner/repo", originSlug)
	}

	p, err := getPipeline()
	if err != nil {
		return err
	}

	title, body := submitTitle, submitBody
	if submitDraftBody {
		drafted, err := draftSubmission(cmd, p, originSlug, branch)
		if err != nil {
			return err
		}
		if title == "" {
			title = drafted.Title
		}
		if body == "" {
			body = drafted.Body
		}
	}

	if dryRun {
		ui.DryRunMsg("Would submit %s branch %s upstream", originSlug, branch)
		return nil
	}

	ui.Info("Submitting %s branch %s upstream...", originSlug, branch)

	pr, err := p.SubmitToOrigin(cmd.Context(), originSlug, branch, title, body)
	if errors.Is(err, pipeline.ErrNotQueued) {
		ui.Warning("Branch %s is not queued for %s. Merge the fork PR first with 'dispatch merge'.", branch, originSlug)
		return nil
	}
	if err != nil {
		return fmt.Errorf("submit upstream: %w", err)
	}

	ui.Success("Opened upstream PR: %s", pr.PRURL)
	return nil
}

// draftSubmission asks the LLM for a title/body pair, using the assignment
// that produced the queued branch for context.
func draftSubmission(cmd *cobra.Command, p *pipeline.Pipeline, originSlug, branch string) (*llm.DraftedPR, error) {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("--draft-body requires anthropic.api_key (or DISPATCH_ANTHROPIC_API_KEY)")
	}

	issueNumber, issueTitle := 0, ""
	if assignments, err := p.Assignments(cmd.Context()); err == nil {
		for _, a := range assignments {
			if a.OriginSlug == originSlug {
				issueNumber = a.IssueNumber
				break
			}
		}
	}
	if issues, err := p.ScoredIssues(cmd.Context()); err == nil {
		for _, is := range issues {
			if is.RepoSlug == originSlug && is.Number == issueNumber {
				issueTitle = is.Title
				break
			}
		}
	}

	changeTitle := ""
	if items, err := p.ReadyToSubmit(cmd.Context()); err == nil {
		for _, it := range items {
			if it.OriginSlug == originSlug && it.Branch == branch {
				changeTitle = it.Title
				break
			}
		}
	}

	client := llm.NewClient(apiKey, viper.GetString("anthropic.model"))
	return client.DraftPR(cmd.Context(), originSlug, issueNumber, issueTitle, branch, changeTitle)
}

func submitQueueRun(cmd *cobra.Command) error {
	p, err := getPipeline()
	if err != nil {
		return err
	}

	items, err := p.ReadyToSubmit(cmd.Context())
	if err != nil {
		return err
	}

	if len(items) == 0 {
		ui.Info("Nothing queued for submission.")
		return nil
	}

	table := ui.Table([]string{"Repo", "Branch", "Base", "Merged", "Title"})
	for _, it := range items {
		_ = table.Append([]string{
			output.Cyan(it.OriginSlug),
			it.Branch,
			it.BaseBranch,
			it.MergedAt.Format("2006-01-02 15:04"),
			truncate(it.Title, 50),
		})
	}
	_ = table.Render()
	return nil
}
