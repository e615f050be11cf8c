package pipeline

import (
	"context"

	"github.com/wolffm/dispatch/internal/cache"
	"github.com/wolffm/dispatch/internal/models"
)

// AddTarget puts owner/repo on the watchlist. The bool reports whether a new
// entry was created; re-adding an existing slug is a no-op. Stage caches are
// invalidated on any mutation attempt so stale target lists never survive a
// watchlist edit.
func (p *Pipeline) AddTarget(ctx context.Context, owner, repo string) (*models.WatchlistEntry, bool, error) {
	entry, created, err := p.store.AddWatchlistEntry(ctx, owner, repo)
	if err != nil {
		return nil, false, err
	}
	p.invalidateStageCaches()
	return entry, created, nil
}

// RemoveTarget drops owner/repo from the watchlist.
func (p *Pipeline) RemoveTarget(ctx context.Context, owner, repo string) (bool, error) {
	removed, err := p.store.RemoveWatchlistEntry(ctx, owner, repo)
	if err != nil {
		return false, err
	}
	p.invalidateStageCaches()
	return removed, nil
}

// RefreshTargets drops the stage caches and, when an aggregator is
// configured, asks it to recompute its data. The bool reports whether the
// aggregator accepted the trigger (always false without one).
func (p *Pipeline) RefreshTargets(ctx context.Context) bool {
	p.invalidateStageCaches()
	return p.agg.TriggerRefresh(ctx)
}

func (p *Pipeline) invalidateStageCaches() {
	p.cache.Invalidate(cacheKeyTargets)
	p.cache.Invalidate(cacheKeyIssues)
}

// Targets returns the watchlist enriched with aggregator health when
// available, or live gh metadata otherwise. Results are cached.
func (p *Pipeline) Targets(ctx context.Context) ([]models.Target, error) {
	return cache.Cached(p.cache, cacheKeyTargets, func() ([]models.Target, error) {
		return p.buildTargets(ctx)
	})
}

func (p *Pipeline) buildTargets(ctx context.Context) ([]models.Target, error) {
	entries, err := p.store.ListWatchlist(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]models.Target, len(entries))
	for i, e := range entries {
		targets[i] = models.Target{Owner: e.Owner, Repo: e.Repo, Slug: e.Slug}
	}

	if p.agg.Enabled() {
		for i := range targets {
			if health, ok := p.agg.RepoHealth(ctx, targets[i].Slug); ok {
				h := health
				targets[i].Health = &h
			}
		}
		return targets, nil
	}

	// No aggregator: probe repo metadata directly, bounded fan-out. A failed
	// probe leaves Meta nil rather than failing the listing.
	p.forEach(len(targets), func(i int) {
		if meta, err := p.gh.RepoOverview(ctx, targets[i].Owner, targets[i].Repo); err == nil {
			targets[i].Meta = meta
		}
	})
	return targets, nil
}
