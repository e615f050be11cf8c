// Package score implements the heuristic contribution-viability scoring used
// to rank candidate issues. Scoring is pure: it sees only the issue record
// and the current time, so results are reproducible in tests.
package score

import (
	"strings"
	"time"

	"github.com/wolffm/dispatch/internal/models"
)

const (
	baseScore          = 50
	stalePenalty       = 30
	quietPenalty       = 10
	goodFirstBonus     = 20
	staleAfter         = 90 * 24 * time.Hour
	quietAfter         = 14 * 24 * time.Hour
	goodFirstLabelText = "good first issue"
)

// Score computes the contribution-viability score for one issue at the given
// time. Issues with any assignee are hard-skipped regardless of other signals.
func Score(rec models.IssueRecord, now time.Time) (int, models.Tier) {
	if len(rec.Assignees) > 0 {
		return 0, models.TierSkip
	}

	cvs := baseScore
	if now.Sub(rec.UpdatedAt) > staleAfter {
		cvs -= stalePenalty
	}
	if int(rec.Comments) == 0 && now.Sub(rec.CreatedAt) > quietAfter {
		cvs -= quietPenalty
	}
	for _, label := range rec.Labels {
		if strings.EqualFold(label, goodFirstLabelText) {
			cvs += goodFirstBonus
			break
		}
	}

	if cvs < 0 {
		cvs = 0
	}
	if cvs > 100 {
		cvs = 100
	}
	return cvs, models.TierForScore(cvs)
}

// severityRanks orders severity labels for dashboard sorting. Unlabeled
// issues rank last.
var severityRanks = map[string]int{
	"severity:critical": 0,
	"severity:high":     1,
	"severity:medium":   2,
}

// SeverityRank returns the sort rank of the most severe severity label on
// the issue; lower is more severe. Issues without a severity label rank
// after all labeled ones.
func SeverityRank(labels []string) int {
	rank := len(severityRanks)
	for _, label := range labels {
		if r, ok := severityRanks[strings.ToLower(label)]; ok && r < rank {
			rank = r
		}
	}
	return rank
}

// ScoreIssue builds a fully populated ScoredIssue for an issue in owner/repo.
func ScoreIssue(owner, repo string, rec models.IssueRecord, now time.Time) models.ScoredIssue {
	cvs, tier := Score(rec, now)
	return models.ScoredIssue{
		ID:               models.IssueID(owner, repo, rec.Number),
		RepoSlug:         owner + "/" + repo,
		Number:           rec.Number,
		Title:            rec.Title,
		URL:              rec.URL,
		CVS:              cvs,
		CVSTier:          tier,
		Labels:           []string(rec.Labels),
		CommentCount:     int(rec.Comments),
		Assignees:        []string(rec.Assignees),
		CreatedAt:        rec.CreatedAt,
		DataCompleteness: "partial",
	}
}
