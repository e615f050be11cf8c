package models

import (
	"encoding/json"
	"time"
)

// The gh CLI returns labels and assignees as objects ({"name": ...},
// {"login": ...}) while the aggregator feed uses bare strings. These union
// types normalize both shapes at the ingestion boundary so downstream logic
// only ever sees one canonical form.

// LabelList is a list of label names, accepting either strings or
// {"name": ...} objects on the wire.
type LabelList []string

func (l *LabelList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		out = append(out, obj.Name)
	}
	*l = out
	return nil
}

// AssigneeList is a list of assignee logins, accepting either strings or
// {"login": ...} objects on the wire.
type AssigneeList []string

func (a *AssigneeList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Login string `json:"login"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		out = append(out, obj.Login)
	}
	*a = out
	return nil
}

// CommentCount accepts either an integer count or a list of comment objects,
// normalizing the latter to its length.
type CommentCount int

func (c *CommentCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*c = CommentCount(n)
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*c = CommentCount(len(list))
	return nil
}

// IssueRecord is one open issue as fetched from a target repo, in canonical
// shape. Input to the heuristic scorer.
type IssueRecord struct {
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	URL       string       `json:"url"`
	Labels    LabelList    `json:"labels"`
	Assignees AssigneeList `json:"assignees"`
	Comments  CommentCount `json:"comments"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
