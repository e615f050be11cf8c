package models

import (
	"fmt"
	"time"
)

// Tier buckets a CVS score into an actionability label.
type Tier string

const (
	TierGo     Tier = "go"
	TierLikely Tier = "likely"
	TierMaybe  Tier = "maybe"
	TierRisky  Tier = "risky"
	TierSkip   Tier = "skip"
)

// TierForScore maps a 0-100 CVS score to its tier.
func TierForScore(cvs int) Tier {
	switch {
	case cvs >= 80:
		return TierGo
	case cvs >= 60:
		return TierLikely
	case cvs >= 40:
		return TierMaybe
	case cvs >= 20:
		return TierRisky
	default:
		return TierSkip
	}
}

// ScoredIssue is a candidate issue with its viability score. Derived on every
// scoring pass, never persisted; ID is the stable cross-pass identity used to
// dedup notifications.
type ScoredIssue struct {
	ID               string    `json:"id"`
	RepoSlug         string    `json:"repo"`
	Number           int       `json:"number"`
	Title            string    `json:"title"`
	URL              string    `json:"url"`
	CVS              int       `json:"cvs"`
	CVSTier          Tier      `json:"cvsTier"`
	Labels           []string  `json:"labels"`
	CommentCount     int       `json:"commentCount"`
	Assignees        []string  `json:"assignees"`
	CreatedAt        time.Time `json:"createdAt"`
	DataCompleteness string    `json:"dataCompleteness"`
}

// IssueID builds the stable issue identity shared with the aggregator.
func IssueID(owner, repo string, number int) string {
	return fmt.Sprintf("github-%s-%s-%d", owner, repo, number)
}
