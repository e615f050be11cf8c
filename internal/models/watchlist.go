package models

import "time"

// WatchlistEntry is a target repository being mined for contributable issues.
// Owner and Repo are stored separately; Slug is display-only and cannot be
// split back into its components (either side may contain hyphens).
type WatchlistEntry struct {
	ID      string    `json:"-"`
	Owner   string    `json:"owner"`
	Repo    string    `json:"repo"`
	Slug    string    `json:"slug"`
	AddedAt time.Time `json:"added_at"`
}

// WatchlistSlug computes the hyphenated display slug for an owner/repo pair.
func WatchlistSlug(owner, repo string) string {
	return owner + "-" + repo
}

// Target is a stage-1 watchlist entry enriched with live repo metadata or
// aggregator health, depending on which data source served it.
type Target struct {
	Owner  string      `json:"owner"`
	Repo   string      `json:"repo"`
	Slug   string      `json:"slug"`
	Meta   *RepoMeta   `json:"meta,omitempty"`
	Health *RepoHealth `json:"health,omitempty"`
}

// RepoMeta holds lightweight repository metadata from the gh probe.
type RepoMeta struct {
	Stars       int    `json:"stars"`
	Language    string `json:"language"`
	Description string `json:"description"`
	OpenIssues  int    `json:"openIssueCount"`
}

// RepoHealth is the aggregator's viability assessment of a target repo.
type RepoHealth struct {
	MaintainerHealthScore   int `json:"maintainerHealthScore"`
	MergeAccessibilityScore int `json:"mergeAccessibilityScore"`
	AvailabilityScore       int `json:"availabilityScore"`
	OverallViability        int `json:"overallViability"`
}
