package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/models"
)

// ForkPRs lists open agent PRs across every fork that has an assignment,
// newest first. Forks that fail to list are skipped.
func (p *Pipeline) ForkPRs(ctx context.Context) ([]models.ForkPR, error) {
	assignments, err := p.store.ListAssignments(ctx)
	if err != nil {
		return nil, err
	}

	user, err := p.gh.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fork owner: %w", err)
	}

	// Distinct fork repos, remembering which upstream each one serves.
	originByRepo := make(map[string]string)
	var repos []string
	for _, a := range assignments {
		if _, seen := originByRepo[a.Repo]; !seen {
			originByRepo[a.Repo] = a.OriginSlug
			repos = append(repos, a.Repo)
		}
	}

	var mu sync.Mutex
	var prs []models.ForkPR
	p.forEach(len(repos), func(i int) {
		repo := repos[i]
		list, err := p.gh.ListForkPRs(ctx, user, repo)
		if err != nil {
			return
		}
		for j := range list {
			list[j].Repo = repo
			list[j].OriginSlug = originByRepo[repo]
		}
		mu.Lock()
		prs = append(prs, list...)
		mu.Unlock()
	})

	sort.SliceStable(prs, func(i, j int) bool {
		return prs[i].CreatedAt.After(prs[j].CreatedAt)
	})
	return prs, nil
}

// MergeForkPR accepts an agent PR on a fork: it captures the head branch
// before the merge destroys the ref, promotes drafts to ready, squash-merges,
// and queues the branch for upstream submission.
func (p *Pipeline) MergeForkPR(ctx context.Context, originSlug, repo string, number int) (*models.ReadyToSubmitItem, error) {
	user, err := p.gh.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fork owner: %w", err)
	}

	head, err := p.gh.ViewPRHead(ctx, user, repo, number)
	if err != nil {
		return nil, fmt.Errorf("inspect fork PR: %w", err)
	}

	if head.IsDraft {
		if err := p.gh.MarkPRReady(ctx, user, repo, number); err != nil {
			return nil, fmt.Errorf("mark ready: %w", err)
		}
	}

	if err := p.gh.MergePR(ctx, user, repo, number); err != nil {
		return nil, fmt.Errorf("merge fork PR: %w", err)
	}

	item := &models.ReadyToSubmitItem{
		OriginSlug: originSlug,
		Repo:       repo,
		Branch:     head.Branch,
		Title:      head.Title,
		BaseBranch: head.BaseBranch,
	}
	if err := p.store.SaveReadyToSubmit(ctx, item); err != nil {
		return nil, fmt.Errorf("queue for submission: %w", err)
	}

	p.notifier.AgentPRReady(originSlug, head.Branch, head.Title)
	return item, nil
}

// ReadyToSubmit lists branches queued for upstream submission.
func (p *Pipeline) ReadyToSubmit(ctx context.Context) ([]*models.ReadyToSubmitItem, error) {
	return p.store.ListReadyToSubmit(ctx)
}

// SubmitToOrigin opens an upstream PR for a queued branch. Title and body
// default from the queued item and its assignment; pass non-empty values to
// override. The queued item is removed only after the submission is recorded.
func (p *Pipeline) SubmitToOrigin(ctx context.Context, originSlug, branch, title, body string) (*models.SubmittedPR, error) {
	items, err := p.store.ListReadyToSubmit(ctx)
	if err != nil {
		return nil, err
	}
	var item *models.ReadyToSubmitItem
	for _, candidate := range items {
		if candidate.OriginSlug == originSlug && candidate.Branch == branch {
			item = candidate
			break
		}
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotQueued, originSlug, branch)
	}

	user, err := p.gh.AuthenticatedUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fork owner: %w", err)
	}

	if title == "" {
		title = item.Title
	}
	if body == "" {
		body = p.defaultPRBody(ctx, originSlug, item.Title)
	}

	prURL, err := p.gh.CreatePR(ctx, originSlug, user+":"+branch, item.BaseBranch, title, body)
	if err != nil {
		return nil, fmt.Errorf("create upstream PR: %w", err)
	}

	pr := &models.SubmittedPR{
		OriginSlug: originSlug,
		PRURL:      prURL,
		PRNumber:   gh.ParsePRNumber(prURL),
		Title:      title,
		State:      models.PRStateOpen,
	}
	if err := p.store.SaveSubmittedPR(ctx, pr); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	if _, err := p.store.RemoveReadyToSubmit(ctx, originSlug, branch); err != nil {
		return nil, fmt.Errorf("dequeue submitted branch: %w", err)
	}
	return pr, nil
}

// defaultPRBody renders the standard upstream PR body. When an assignment
// exists for the origin, the body references the upstream issue it fixes.
func (p *Pipeline) defaultPRBody(ctx context.Context, originSlug, changeTitle string) string {
	assignments, err := p.store.ListAssignments(ctx)
	if err == nil {
		for i := len(assignments) - 1; i >= 0; i-- {
			a := assignments[i]
			if a.OriginSlug == originSlug {
				return fmt.Sprintf("## Summary\n\nFixes %s#%d: %s\n\nThis change was developed and tested on a fork before submission.\n\nCloses #%d\n",
					originSlug, a.IssueNumber, changeTitle, a.IssueNumber)
			}
		}
	}
	return fmt.Sprintf("## Summary\n\n%s\n", changeTitle)
}

// SubmittedPRs lists all tracked upstream submissions.
func (p *Pipeline) SubmittedPRs(ctx context.Context) ([]*models.SubmittedPR, error) {
	return p.store.ListSubmittedPRs(ctx)
}
