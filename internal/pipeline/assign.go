package pipeline

import (
	"context"
	"fmt"

	"github.com/wolffm/dispatch/internal/brief"
	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/models"
)

// ForkAndAssign runs the full assignment flow for one upstream issue: ensure
// a synced fork exists, post a context issue on the fork, hand it to the
// coding agent, and record the assignment. Idempotent: a second call for the
// same issue returns the existing assignment with ErrAlreadyAssigned. Any
// step failure aborts before a record is written, so a retry starts clean.
func (p *Pipeline) ForkAndAssign(ctx context.Context, owner, repo string, issueNumber int, issueTitle string) (*models.Assignment, error) {
	originSlug := owner + "/" + repo

	existing, err := p.store.FindAssignment(ctx, originSlug, issueNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrAlreadyAssigned
	}

	user, err := p.gh.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fork owner: %w", err)
	}

	if err := p.forks.Ensure(ctx, user, owner, repo); err != nil {
		return nil, fmt.Errorf("ensure fork: %w", err)
	}
	if err := p.forks.Sync(ctx, user, repo); err != nil {
		return nil, fmt.Errorf("sync fork: %w", err)
	}

	// Context gathering is best-effort: a brief without the issue body or
	// contributing guide is still useful.
	issueBody, _ := p.gh.IssueBody(ctx, owner, repo, issueNumber)
	contributing, _ := p.gh.ContributingFile(ctx, owner, repo)
	dossier, _ := p.agg.Dossier(ctx, models.WatchlistSlug(owner, repo))

	body := brief.Build(brief.Input{
		OriginSlug:   originSlug,
		IssueNumber:  issueNumber,
		IssueTitle:   issueTitle,
		IssueURL:     fmt.Sprintf("https://github.com/%s/issues/%d", originSlug, issueNumber),
		IssueBody:    issueBody,
		Contributing: contributing,
		Dossier:      dossier,
	})
	title := brief.Title(originSlug, issueNumber, issueTitle)

	forkIssueURL, err := p.gh.CreateIssue(ctx, user, repo, title, body)
	if err != nil {
		return nil, fmt.Errorf("create fork issue: %w", err)
	}
	forkIssueNumber := 0
	if n := gh.ParsePRNumber(forkIssueURL); n != nil {
		forkIssueNumber = *n
	}

	if err := p.gh.AssignIssue(ctx, user, repo, forkIssueNumber, p.agentLogin); err != nil {
		return nil, fmt.Errorf("assign agent: %w", err)
	}

	assignment := &models.Assignment{
		OriginSlug:      originSlug,
		Repo:            repo,
		IssueNumber:     issueNumber,
		ForkIssueNumber: forkIssueNumber,
		ForkIssueURL:    forkIssueURL,
	}
	if err := p.store.CreateAssignment(ctx, assignment); err != nil {
		return nil, fmt.Errorf("record assignment: %w", err)
	}

	// Claim reporting is advisory; the assignment stands even if it fails.
	p.agg.ReportClaim(ctx, originSlug, issueNumber)

	return assignment, nil
}

// Assignments lists all recorded assignments.
func (p *Pipeline) Assignments(ctx context.Context) ([]*models.Assignment, error) {
	return p.store.ListAssignments(ctx)
}
