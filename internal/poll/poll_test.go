package poll

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/models"
	"github.com/wolffm/dispatch/internal/store"
)

type fakeProber struct {
	mu       sync.Mutex
	statuses map[string]*gh.PRStatus
	probed   []string
}

func (f *fakeProber) ViewPRStatus(_ context.Context, prURL string) (*gh.PRStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, prURL)
	status, ok := f.statuses[prURL]
	if !ok {
		return nil, errors.New("probe failed")
	}
	return status, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	merged   []string
	feedback []string
}

func (r *recordingNotifier) GoTierIssue(string, int, string, int) {}
func (r *recordingNotifier) AgentPRReady(string, string, string)  {}
func (r *recordingNotifier) UpstreamMerged(_ string, prURL string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merged = append(r.merged, prURL)
}
func (r *recordingNotifier) UpstreamFeedback(_ string, prURL string, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback = append(r.feedback, prURL)
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedPR(t *testing.T, s *store.SQLiteStore, url string, state models.PRState, decision string) {
	t.Helper()
	require.NoError(t, s.SaveSubmittedPR(context.Background(), &models.SubmittedPR{
		OriginSlug:     "fastify/fastify",
		PRURL:          url,
		Title:          "Fix crash",
		State:          state,
		ReviewDecision: decision,
	}))
}

func findPR(t *testing.T, s *store.SQLiteStore, url string) *models.SubmittedPR {
	t.Helper()
	prs, err := s.ListSubmittedPRs(context.Background())
	require.NoError(t, err)
	for _, pr := range prs {
		if pr.PRURL == url {
			return pr
		}
	}
	t.Fatalf("PR %s not found", url)
	return nil
}

func TestRunDetectsMerge(t *testing.T) {
	s := newTestStore(t)
	url := "https://github.com/fastify/fastify/pull/1"
	seedPR(t, s, url, models.PRStateOpen, "")

	mergedAt := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	prober := &fakeProber{statuses: map[string]*gh.PRStatus{
		url: {State: "MERGED", MergedAt: &mergedAt},
	}}
	notifier := &recordingNotifier{}

	summary, err := New(s, prober, notifier, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Polled)
	assert.Equal(t, 1, summary.Merged)

	pr := findPR(t, s, url)
	assert.Equal(t, models.PRStateMerged, pr.State)
	require.NotNil(t, pr.MergedAt)
	assert.True(t, pr.MergedAt.Equal(mergedAt))
	assert.Equal(t, []string{url}, notifier.merged)
}

func TestRunDetectsFeedback(t *testing.T) {
	s := newTestStore(t)
	url := "https://github.com/fastify/fastify/pull/2"
	seedPR(t, s, url, models.PRStateOpen, "")

	prober := &fakeProber{statuses: map[string]*gh.PRStatus{
		url: {State: "OPEN", ReviewDecision: "CHANGES_REQUESTED"},
	}}
	notifier := &recordingNotifier{}

	summary, err := New(s, prober, notifier, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Feedback)
	assert.Equal(t, []string{url}, notifier.feedback)

	pr := findPR(t, s, url)
	assert.Equal(t, models.PRStateOpen, pr.State)
	assert.Equal(t, "CHANGES_REQUESTED", pr.ReviewDecision)
}

func TestRunUnchangedDecisionIsSilent(t *testing.T) {
	s := newTestStore(t)
	url := "https://github.com/fastify/fastify/pull/3"
	seedPR(t, s, url, models.PRStateOpen, "CHANGES_REQUESTED")

	prober := &fakeProber{statuses: map[string]*gh.PRStatus{
		url: {State: "OPEN", ReviewDecision: "CHANGES_REQUESTED"},
	}}
	notifier := &recordingNotifier{}

	summary, err := New(s, prober, notifier, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Feedback)
	assert.Empty(t, notifier.feedback)
}

func TestRunNonActionableDecisionIsSilent(t *testing.T) {
	s := newTestStore(t)
	url := "https://github.com/fastify/fastify/pull/4"
	seedPR(t, s, url, models.PRStateOpen, "")

	prober := &fakeProber{statuses: map[string]*gh.PRStatus{
		url: {State: "OPEN", ReviewDecision: "REVIEW_REQUIRED"},
	}}
	notifier := &recordingNotifier{}

	summary, err := New(s, prober, notifier, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Feedback)
	assert.Empty(t, notifier.feedback)
}

func TestRunSkipsTerminalPRs(t *testing.T) {
	s := newTestStore(t)
	mergedURL := "https://github.com/fastify/fastify/pull/5"
	closedURL := "https://github.com/fastify/fastify/pull/6"
	openURL := "https://github.com/fastify/fastify/pull/7"
	seedPR(t, s, mergedURL, models.PRStateMerged, "")
	seedPR(t, s, closedURL, models.PRStateClosed, "")
	seedPR(t, s, openURL, models.PRStateOpen, "")

	prober := &fakeProber{statuses: map[string]*gh.PRStatus{
		openURL: {State: "OPEN"},
	}}

	summary, err := New(s, prober, &recordingNotifier{}, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 1, summary.Polled)
	assert.Equal(t, []string{openURL}, prober.probed)

	// Terminal state never regresses even though the store was rewritten.
	assert.Equal(t, models.PRStateMerged, findPR(t, s, mergedURL).State)
	assert.Equal(t, models.PRStateClosed, findPR(t, s, closedURL).State)
}

func TestRunProbeFailureLeavesEntryIntact(t *testing.T) {
	s := newTestStore(t)
	url := "https://github.com/fastify/fastify/pull/8"
	seedPR(t, s, url, models.PRStateOpen, "APPROVED")

	prober := &fakeProber{statuses: map[string]*gh.PRStatus{}} // every probe errors
	notifier := &recordingNotifier{}

	summary, err := New(s, prober, notifier, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	pr := findPR(t, s, url)
	assert.Equal(t, models.PRStateOpen, pr.State)
	assert.Equal(t, "APPROVED", pr.ReviewDecision)
	assert.NotNil(t, pr.LastPolledAt, "failed probes still stamp the poll time")
	assert.Empty(t, notifier.merged)
}

func TestRunDetectsClose(t *testing.T) {
	s := newTestStore(t)
	url := "https://github.com/fastify/fastify/pull/9"
	seedPR(t, s, url, models.PRStateOpen, "")

	prober := &fakeProber{statuses: map[string]*gh.PRStatus{
		url: {State: "CLOSED"},
	}}
	notifier := &recordingNotifier{}

	summary, err := New(s, prober, notifier, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Closed)
	assert.Empty(t, notifier.merged, "close without merge is not a merge notification")

	pr := findPR(t, s, url)
	assert.Equal(t, models.PRStateClosed, pr.State)
	assert.NotNil(t, pr.ClosedAt)
}
