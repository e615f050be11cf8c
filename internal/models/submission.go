package models

import "time"

// PRState is the lifecycle state of a submitted upstream PR. Transitions are
// forward-only: open → merged or open → closed, never back.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateMerged PRState = "merged"
	PRStateClosed PRState = "closed"
)

// Terminal reports whether the state admits no further transitions.
func (s PRState) Terminal() bool {
	return s == PRStateMerged || s == PRStateClosed
}

// ReadyToSubmitItem is a fork branch whose agent PR has been merged locally
// and is waiting for upstream submission. Removed (matched by origin_slug +
// branch) once submitted.
type ReadyToSubmitItem struct {
	ID         string    `json:"-"`
	OriginSlug string    `json:"origin_slug"`
	Repo       string    `json:"repo"`
	Branch     string    `json:"branch"`
	Title      string    `json:"title"`
	BaseBranch string    `json:"base_branch"`
	MergedAt   time.Time `json:"merged_at"`
}

// SubmittedPR tracks a PR opened against the upstream repo. The polling
// engine mutates State, ReviewDecision, and the timestamps in place and
// rewrites the whole collection each cycle.
type SubmittedPR struct {
	ID             string     `json:"-"`
	OriginSlug     string     `json:"origin_slug"`
	PRURL          string     `json:"pr_url"`
	PRNumber       *int       `json:"pr_number"` // nil when unparseable from the URL
	Title          string     `json:"title"`
	State          PRState    `json:"state"`
	ReviewDecision string     `json:"review_decision,omitempty"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	LastPolledAt   *time.Time `json:"last_polled_at,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at"`
}

// ForkPR is an agent-authored pull request on one of our forks (stage 4).
type ForkPR struct {
	Number         int       `json:"number"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Branch         string    `json:"headRefName"`
	BaseBranch     string    `json:"baseRefName"`
	Additions      int       `json:"additions"`
	Deletions      int       `json:"deletions"`
	ChangedFiles   int       `json:"changedFiles"`
	ReviewDecision string    `json:"reviewDecision"`
	IsDraft        bool      `json:"isDraft"`
	CreatedAt      time.Time `json:"createdAt"`
	Repo           string    `json:"repo"`
	OriginSlug     string    `json:"originSlug"`
}
