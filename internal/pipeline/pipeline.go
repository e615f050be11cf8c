// Package pipeline orchestrates the five contribution stages: watchlist
// targets, issue scoring, fork-and-assign, fork PR merging, and upstream
// submission. It composes the store, the gh client, the fork coordinator,
// the cache, and the optional aggregator and notifier collaborators.
package pipeline

import (
	"errors"
	"sync"

	"github.com/wolffm/dispatch/internal/aggregator"
	"github.com/wolffm/dispatch/internal/cache"
	"github.com/wolffm/dispatch/internal/fork"
	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/notify"
	"github.com/wolffm/dispatch/internal/store"
)

// Cache keys for stage results, shared with the aggregator's naming.
const (
	cacheKeyTargets = "oss-stage1-targets"
	cacheKeyIssues  = "oss-stage2-issues"
)

// DefaultWorkers bounds fan-out across targets and forks.
const DefaultWorkers = 5

// goTierNotifyThreshold is the minimum CVS for a go-tier notification.
const goTierNotifyThreshold = 85

var (
	// ErrAlreadyAssigned means the upstream issue already has an assignment
	// record; fork-and-assign never runs twice for the same issue.
	ErrAlreadyAssigned = errors.New("issue already assigned")
	// ErrAlreadySelected means the issue is already on the selection list.
	ErrAlreadySelected = errors.New("issue already selected")
	// ErrNotQueued means no ready-to-submit item matches the given branch.
	ErrNotQueued = errors.New("branch not in ready-to-submit queue")
)

// SeenSet tracks issue IDs that have already produced a go-tier
// notification. Safe for concurrent use; injectable so tests can pre-seed or
// inspect it.
type SeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewSeenSet returns an empty SeenSet.
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// FirstSight records id and reports whether this was its first appearance.
func (s *SeenSet) FirstSight(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Options tunes pipeline behavior.
type Options struct {
	AgentLogin string   // fork-issue assignee, e.g. "Copilot"
	Workers    int      // bounded fan-out width
	Seen       *SeenSet // go-tier notification dedup
}

// Pipeline wires the stages together.
type Pipeline struct {
	store    store.Store
	gh       *gh.Client
	forks    *fork.Coordinator
	agg      *aggregator.Client
	cache    *cache.Cache
	notifier notify.Notifier

	agentLogin string
	workers    int
	seen       *SeenSet
}

// New assembles a Pipeline. Zero-value Options fields fall back to defaults.
func New(st store.Store, ghc *gh.Client, forks *fork.Coordinator, agg *aggregator.Client, c *cache.Cache, n notify.Notifier, opts Options) *Pipeline {
	if opts.AgentLogin == "" {
		opts.AgentLogin = "Copilot"
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Seen == nil {
		opts.Seen = NewSeenSet()
	}
	if n == nil {
		n = notify.Noop{}
	}
	return &Pipeline{
		store:      st,
		gh:         ghc,
		forks:      forks,
		agg:        agg,
		cache:      c,
		notifier:   n,
		agentLogin: opts.AgentLogin,
		workers:    opts.Workers,
		seen:       opts.Seen,
	}
}

// forEach runs fn(i) for i in [0, n) across at most p.workers goroutines and
// waits for all of them.
func (p *Pipeline) forEach(n int, fn func(i int)) {
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}
