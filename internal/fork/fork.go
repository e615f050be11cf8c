// Package fork manages fork creation and readiness for the assignment flow.
// GitHub creates forks asynchronously, so after requesting one we probe the
// fork repo until it becomes visible or a deadline passes.
package fork

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultWaitTimeout bounds the total wait for a fork to appear.
	DefaultWaitTimeout = 60 * time.Second
	// DefaultWaitInterval is the pause between readiness probes.
	DefaultWaitInterval = 3 * time.Second
)

// GitHub is the subset of the gh client the coordinator needs.
type GitHub interface {
	RepoExists(ctx context.Context, owner, repo string) bool
	ForkRepo(ctx context.Context, owner, repo string) error
	SyncFork(ctx context.Context, user, repo string) error
}

// Coordinator ensures a ready, synced fork of an upstream repo exists under
// the authenticated user's account.
type Coordinator struct {
	gh       GitHub
	timeout  time.Duration
	interval time.Duration
	sleep    func(time.Duration)
}

// New returns a Coordinator with the given wait bounds. Non-positive values
// fall back to the defaults.
func New(gh GitHub, timeout, interval time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	if interval <= 0 {
		interval = DefaultWaitInterval
	}
	return &Coordinator{gh: gh, timeout: timeout, interval: interval, sleep: time.Sleep}
}

// Ensure makes sure user has a visible fork of owner/repo, creating one and
// waiting for it if necessary.
func (c *Coordinator) Ensure(ctx context.Context, user, owner, repo string) error {
	if c.gh.RepoExists(ctx, user, repo) {
		return nil
	}
	if err := c.gh.ForkRepo(ctx, owner, repo); err != nil {
		return err
	}
	if !c.WaitReady(ctx, user, repo) {
		return fmt.Errorf("fork %s/%s not ready after %s", user, repo, c.timeout)
	}
	return nil
}

// WaitReady probes until the fork is visible. It returns true on the first
// successful probe and false once the timeout's worth of probes is spent.
func (c *Coordinator) WaitReady(ctx context.Context, user, repo string) bool {
	attempts := int(c.timeout/c.interval) + 1
	for i := 0; i < attempts; i++ {
		if c.gh.RepoExists(ctx, user, repo) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if i < attempts-1 {
			c.sleep(c.interval)
		}
	}
	return false
}

// Sync updates the fork's default branch from upstream.
func (c *Coordinator) Sync(ctx context.Context, user, repo string) error {
	return c.gh.SyncFork(ctx, user, repo)
}
