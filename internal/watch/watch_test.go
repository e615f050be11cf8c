package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolffm/dispatch/internal/poll"
)

type fakePoller struct {
	runs atomic.Int32
	err  error
}

func (f *fakePoller) Run(ctx context.Context) (*poll.Summary, error) {
	f.runs.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &poll.Summary{Polled: 1}, nil
}

func TestLoop_RunsImmediatelyThenStopsOnCancel(t *testing.T) {
	p := &fakePoller{}
	l := New(p, time.Hour)

	var passes atomic.Int32
	l.OnPass = func(s *poll.Summary) {
		passes.Add(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	assert.Eventually(t, func() bool { return passes.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), p.runs.Load())
}

func TestLoop_PassFailureDoesNotStopLoop(t *testing.T) {
	p := &fakePoller{err: errors.New("probe down")}
	l := New(p, 5*time.Millisecond)

	var failures atomic.Int32
	l.OnError = func(err error) {
		failures.Add(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	assert.Eventually(t, func() bool { return failures.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestLoop_DefaultInterval(t *testing.T) {
	l := New(&fakePoller{}, 0)
	assert.Equal(t, DefaultInterval, l.interval)
}

func TestPIDFile_AcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, pf.Release())
	_, err = pf.Read()
	assert.Error(t, err)
}

func TestPIDFile_AcquireRefusesLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	pf := NewPIDFile(path)

	// Current process is definitely alive.
	require.NoError(t, pf.Acquire())

	err := pf.Acquire()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "another watch loop is running")
}

func TestPIDFile_AcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch.pid")
	// Far beyond any plausible pid_max.
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0o644))

	pf := NewPIDFile(path)
	require.NoError(t, pf.Acquire())

	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Read_InvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-number\n"), 0o644))

	pf := NewPIDFile(path)
	_, err := pf.Read()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID file content")
}
