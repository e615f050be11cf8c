package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wolffm/dispatch/internal/cache"
	"github.com/wolffm/dispatch/internal/models"
	"github.com/wolffm/dispatch/internal/score"
)

// ScoredIssues returns scored candidate issues across the watchlist, highest
// CVS first. The aggregator's pre-scored feed is preferred; otherwise issues
// are fetched and scored locally. Issues claimed by other contributors are
// dropped. Results are cached; go-tier notifications fire at most once per
// issue ID per process.
func (p *Pipeline) ScoredIssues(ctx context.Context) ([]models.ScoredIssue, error) {
	issues, err := cache.Cached(p.cache, cacheKeyIssues, func() ([]models.ScoredIssue, error) {
		return p.buildScoredIssues(ctx)
	})
	if err != nil {
		return nil, err
	}

	for _, issue := range issues {
		if issue.CVSTier == models.TierGo && issue.CVS >= goTierNotifyThreshold && p.seen.FirstSight(issue.ID) {
			p.notifier.GoTierIssue(issue.RepoSlug, issue.Number, issue.Title, issue.CVS)
		}
	}
	return issues, nil
}

func (p *Pipeline) buildScoredIssues(ctx context.Context) ([]models.ScoredIssue, error) {
	var issues []models.ScoredIssue
	if agg, ok := p.agg.ScoredIssues(ctx); ok {
		issues = agg
	} else {
		local, err := p.scoreLocally(ctx)
		if err != nil {
			return nil, err
		}
		issues = local
	}

	issues = p.dropClaimed(ctx, issues)

	// CVS descending; severity labels break ties.
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].CVS != issues[j].CVS {
			return issues[i].CVS > issues[j].CVS
		}
		return score.SeverityRank(issues[i].Labels) < score.SeverityRank(issues[j].Labels)
	})
	return issues, nil
}

func (p *Pipeline) scoreLocally(ctx context.Context) ([]models.ScoredIssue, error) {
	entries, err := p.store.ListWatchlist(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var mu sync.Mutex
	var issues []models.ScoredIssue

	p.forEach(len(entries), func(i int) {
		e := entries[i]
		records, err := p.gh.ListIssues(ctx, e.Owner, e.Repo)
		if err != nil {
			// One unreachable repo must not sink the whole pass.
			return
		}
		scored := make([]models.ScoredIssue, 0, len(records))
		for _, rec := range records {
			scored = append(scored, score.ScoreIssue(e.Owner, e.Repo, rec, now))
		}
		mu.Lock()
		issues = append(issues, scored...)
		mu.Unlock()
	})
	return issues, nil
}

func (p *Pipeline) dropClaimed(ctx context.Context, issues []models.ScoredIssue) []models.ScoredIssue {
	claimed, ok := p.agg.Claims(ctx)
	if !ok || len(claimed) == 0 {
		return issues
	}
	claimedSet := make(map[string]struct{}, len(claimed))
	for _, id := range claimed {
		claimedSet[id] = struct{}{}
	}
	kept := issues[:0]
	for _, issue := range issues {
		if _, taken := claimedSet[issue.ID]; !taken {
			kept = append(kept, issue)
		}
	}
	return kept
}

// SelectIssue records operator intent to work on an issue.
func (p *Pipeline) SelectIssue(ctx context.Context, originSlug string, issueNumber int, title, url string) (*models.SelectedIssue, error) {
	existing, err := p.store.FindSelectedIssue(ctx, originSlug, issueNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrAlreadySelected
	}

	sel := &models.SelectedIssue{
		OriginSlug:  originSlug,
		IssueNumber: issueNumber,
		IssueTitle:  title,
		IssueURL:    url,
	}
	if err := p.store.SelectIssue(ctx, sel); err != nil {
		return nil, err
	}
	return sel, nil
}

// SplitSlug splits an "owner/repo" origin slug.
func SplitSlug(originSlug string) (owner, repo string, ok bool) {
	owner, repo, ok = strings.Cut(originSlug, "/")
	return owner, repo, ok && owner != "" && repo != ""
}
