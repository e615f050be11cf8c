package score

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolffm/dispatch/internal/models"
)

var scoreNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func freshIssue() models.IssueRecord {
	return models.IssueRecord{
		Number:    1,
		Title:     "Fix crash on empty payload",
		URL:       "https://github.com/fastify/fastify/issues/1",
		Comments:  3,
		CreatedAt: scoreNow.Add(-48 * time.Hour),
		UpdatedAt: scoreNow.Add(-24 * time.Hour),
	}
}

func TestScoreFreshUnlabeled(t *testing.T) {
	cvs, tier := Score(freshIssue(), scoreNow)
	assert.Equal(t, 50, cvs)
	assert.Equal(t, models.TierMaybe, tier)
}

func TestScoreGoodFirstIssue(t *testing.T) {
	rec := freshIssue()
	rec.Labels = models.LabelList{"good first issue"}

	cvs, tier := Score(rec, scoreNow)
	assert.Equal(t, 70, cvs)
	assert.Equal(t, models.TierLikely, tier)
}

func TestScoreGoodFirstIssueCaseInsensitive(t *testing.T) {
	rec := freshIssue()
	rec.Labels = models.LabelList{"Good First Issue"}

	cvs, _ := Score(rec, scoreNow)
	assert.Equal(t, 70, cvs)
}

func TestScoreStaleIssue(t *testing.T) {
	rec := freshIssue()
	rec.UpdatedAt = scoreNow.Add(-91 * 24 * time.Hour)

	cvs, tier := Score(rec, scoreNow)
	assert.Equal(t, 20, cvs)
	assert.Equal(t, models.TierRisky, tier)
}

func TestScoreStaleAndQuietIssue(t *testing.T) {
	rec := freshIssue()
	rec.Comments = 0
	rec.CreatedAt = scoreNow.Add(-120 * 24 * time.Hour)
	rec.UpdatedAt = scoreNow.Add(-120 * 24 * time.Hour)

	cvs, tier := Score(rec, scoreNow)
	assert.Equal(t, 10, cvs)
	assert.Equal(t, models.TierSkip, tier)
}

func TestScoreQuietButRecentlyUpdated(t *testing.T) {
	rec := freshIssue()
	rec.Comments = 0
	rec.CreatedAt = scoreNow.Add(-30 * 24 * time.Hour)
	rec.UpdatedAt = scoreNow.Add(-24 * time.Hour)

	cvs, _ := Score(rec, scoreNow)
	assert.Equal(t, 40, cvs)
}

func TestScoreAssignedIssueIsSkipped(t *testing.T) {
	rec := freshIssue()
	rec.Assignees = models.AssigneeList{"octocat"}
	rec.Labels = models.LabelList{"good first issue"}

	cvs, tier := Score(rec, scoreNow)
	assert.Equal(t, 0, cvs)
	assert.Equal(t, models.TierSkip, tier)
}

func TestScoreHandlesBothWireShapes(t *testing.T) {
	// gh sometimes returns labels/assignees as objects and comments as a
	// list; scoring must be identical either way.
	var objShape models.IssueRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"number": 1,
		"labels": [{"name":"Good First Issue"}],
		"assignees": [],
		"comments": [{"body":"first"}],
		"createdAt": "2026-08-24T12:00:00Z",
		"updatedAt": "2026-08-25T12:00:00Z"
	}`), &objShape))

	var strShape models.IssueRecord
	require.NoError(t, json.Unmarshal([]byte(`{
		"number": 1,
		"labels": ["good first issue"],
		"assignees": [],
		"comments": 1,
		"createdAt": "2026-08-24T12:00:00Z",
		"updatedAt": "2026-08-25T12:00:00Z"
	}`), &strShape))

	objCVS, objTier := Score(objShape, scoreNow)
	strCVS, strTier := Score(strShape, scoreNow)
	assert.Equal(t, objCVS, strCVS)
	assert.Equal(t, objTier, strTier)
	assert.Equal(t, 70, objCVS)
}

func TestTierBoundaries(t *testing.T) {
	tests := []struct {
		cvs  int
		tier models.Tier
	}{
		{100, models.TierGo},
		{85, models.TierGo},
		{80, models.TierGo},
		{79, models.TierLikely},
		{60, models.TierLikely},
		{59, models.TierMaybe},
		{40, models.TierMaybe},
		{39, models.TierRisky},
		{20, models.TierRisky},
		{19, models.TierSkip},
		{0, models.TierSkip},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, models.TierForScore(tt.cvs), "cvs=%d", tt.cvs)
	}
}

func TestScoreIssueBuildsIdentity(t *testing.T) {
	rec := freshIssue()
	scored := ScoreIssue("fastify", "fastify", rec, scoreNow)

	assert.Equal(t, "github-fastify-fastify-1", scored.ID)
	assert.Equal(t, "fastify/fastify", scored.RepoSlug)
	assert.Equal(t, "partial", scored.DataCompleteness)
	assert.Equal(t, 50, scored.CVS)
	assert.Equal(t, models.TierMaybe, scored.CVSTier)
}

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		rank   int
	}{
		{"critical", []string{"bug", "severity:critical"}, 0},
		{"high", []string{"severity:high"}, 1},
		{"medium", []string{"severity:medium"}, 2},
		{"most severe wins", []string{"severity:medium", "severity:high"}, 1},
		{"case insensitive", []string{"Severity:Critical"}, 0},
		{"unlabeled ranks last", []string{"bug", "docs"}, 3},
		{"no labels", nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rank, SeverityRank(tt.labels))
		})
	}
}
