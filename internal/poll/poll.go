// Package poll re-checks submitted upstream PRs and raises notifications on
// state changes. PR state is forward-only: once a tracked PR is merged or
// closed it is never probed again and never transitions back.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/models"
	"github.com/wolffm/dispatch/internal/notify"
	"github.com/wolffm/dispatch/internal/store"
)

// DefaultWorkers bounds concurrent PR probes.
const DefaultWorkers = 5

// Prober is the single gh capability the engine needs.
type Prober interface {
	ViewPRStatus(ctx context.Context, prURL string) (*gh.PRStatus, error)
}

// Summary tallies one polling pass.
type Summary struct {
	Polled   int
	Skipped  int // already terminal
	Merged   int
	Closed   int
	Feedback int
	Failed   int // probe failures, entry left as-is
}

// Engine polls open submissions concurrently and persists the updated set.
type Engine struct {
	store    store.Store
	gh       Prober
	notifier notify.Notifier
	workers  int
	now      func() time.Time
}

// New returns an Engine. Non-positive workers falls back to DefaultWorkers.
func New(st store.Store, prober Prober, n notify.Notifier, workers int) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if n == nil {
		n = notify.Noop{}
	}
	return &Engine{store: st, gh: prober, notifier: n, workers: workers, now: time.Now}
}

// Run executes one polling pass over every tracked submission: open PRs are
// probed in parallel, state diffs raise notifications, and the full set is
// rewritten in one transaction at the end.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	prs, err := e.store.ListSubmittedPRs(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	var mu sync.Mutex

	var open []*models.SubmittedPR
	for _, pr := range prs {
		if pr.State.Terminal() {
			summary.Skipped++
			continue
		}
		open = append(open, pr)
	}

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, pr := range open {
		wg.Add(1)
		sem <- struct{}{}
		go func(pr *models.SubmittedPR) {
			defer wg.Done()
			defer func() { <-sem }()

			event := e.probe(ctx, pr)
			mu.Lock()
			summary.Polled++
			switch event {
			case eventMerged:
				summary.Merged++
			case eventClosed:
				summary.Closed++
			case eventFeedback:
				summary.Feedback++
			case eventFailed:
				summary.Failed++
			}
			mu.Unlock()
		}(pr)
	}
	wg.Wait()

	if err := e.store.ReplaceSubmittedPRs(ctx, prs); err != nil {
		return nil, err
	}
	return summary, nil
}

type event int

const (
	eventNone event = iota
	eventMerged
	eventClosed
	eventFeedback
	eventFailed
)

// probe updates one open PR in place from its remote state and returns the
// notification-worthy event, if any. A failed probe leaves everything but
// LastPolledAt untouched.
func (e *Engine) probe(ctx context.Context, pr *models.SubmittedPR) event {
	now := e.now().UTC()
	pr.LastPolledAt = &now

	status, err := e.gh.ViewPRStatus(ctx, pr.PRURL)
	if err != nil {
		return eventFailed
	}

	prevDecision := pr.ReviewDecision
	pr.ReviewDecision = status.ReviewDecision

	switch status.State {
	case "MERGED":
		pr.State = models.PRStateMerged
		if status.MergedAt != nil {
			pr.MergedAt = status.MergedAt
		} else {
			pr.MergedAt = &now
		}
		e.notifier.UpstreamMerged(pr.OriginSlug, pr.PRURL, pr.Title)
		return eventMerged
	case "CLOSED":
		pr.State = models.PRStateClosed
		if status.ClosedAt != nil {
			pr.ClosedAt = status.ClosedAt
		} else {
			pr.ClosedAt = &now
		}
		return eventClosed
	}

	if actionable(status.ReviewDecision) && status.ReviewDecision != prevDecision {
		e.notifier.UpstreamFeedback(pr.OriginSlug, pr.PRURL, status.ReviewDecision)
		return eventFeedback
	}
	return eventNone
}

// actionable reports whether a review decision warrants a notification.
func actionable(decision string) bool {
	return decision == "CHANGES_REQUESTED" || decision == "APPROVED"
}
