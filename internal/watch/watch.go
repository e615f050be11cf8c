// Package watch runs the submission poller on a fixed interval, guarded
// by a PID file so only one loop mutates the tracking store at a time.
package watch

import (
	"context"
	"time"

	"github.com/wolffm/dispatch/internal/poll"
)

// DefaultInterval is how often the loop polls upstream submissions.
const DefaultInterval = 15 * time.Minute

// Poller runs one polling pass. Satisfied by *poll.Engine.
type Poller interface {
	Run(ctx context.Context) (*poll.Summary, error)
}

// Loop drives periodic polling until its context is canceled. OnPass and
// OnError are optional observation hooks.
type Loop struct {
	poller   Poller
	interval time.Duration

	OnPass  func(*poll.Summary)
	OnError func(error)
}

// New returns a Loop. Non-positive interval falls back to DefaultInterval.
func New(p Poller, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{poller: p, interval: interval}
}

// Run polls immediately, then on every interval tick, until ctx is
// canceled. Pass failures are reported and do not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		summary, err := l.poller.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.OnError != nil {
				l.OnError(err)
			}
		} else if l.OnPass != nil {
			l.OnPass(summary)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
