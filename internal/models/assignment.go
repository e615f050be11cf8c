package models

import "time"

// SelectedIssue marks operator intent to work an issue. Purely advisory;
// unique by (origin_slug, issue_number).
type SelectedIssue struct {
	ID          string    `json:"-"`
	OriginSlug  string    `json:"origin_slug"`
	IssueNumber int       `json:"issue_number"`
	IssueTitle  string    `json:"issue_title"`
	IssueURL    string    `json:"issue_url"`
	SelectedAt  time.Time `json:"selected_at"`
}

// Assignment records that an upstream issue has been forked and handed to the
// coding agent as a context issue on the fork. Unique by
// (origin_slug, issue_number) — at most one fork-issue per upstream issue,
// ever. Append-only.
type Assignment struct {
	ID              string    `json:"-"`
	OriginSlug      string    `json:"origin_slug"`
	Repo            string    `json:"repo"`
	IssueNumber     int       `json:"issue_number"`
	ForkIssueNumber int       `json:"fork_issue_number"`
	ForkIssueURL    string    `json:"fork_issue_url"`
	AssignedAt      time.Time `json:"assigned_at"`
}
