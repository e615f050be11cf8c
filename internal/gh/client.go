package gh

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolffm/dispatch/internal/models"
)

// Client wraps a Runner with typed GitHub operations. Read operations that
// get malformed JSON back return an error the caller is expected to treat as
// an empty result rather than propagate.
type Client struct {
	runner       Runner
	timeout      time.Duration
	mergeTimeout time.Duration
}

// NewClient returns a Client using the given runner and default timeouts.
func NewClient(r Runner) *Client {
	return &Client{runner: r, timeout: DefaultTimeout, mergeTimeout: MergeTimeout}
}

// WithTimeouts overrides the default and merge timeouts.
func (c *Client) WithTimeouts(timeout, mergeTimeout time.Duration) *Client {
	c.timeout = timeout
	c.mergeTimeout = mergeTimeout
	return c
}

func (c *Client) run(ctx context.Context, args ...string) Result {
	return c.runner.Run(ctx, c.timeout, args...)
}

// AuthenticatedUser returns the login of the gh-authenticated user.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	res := c.run(ctx, "api", "user", "--jq", ".login")
	if !res.Success {
		return "", fmt.Errorf("get authenticated user: %s", res.Error)
	}
	return strings.TrimSpace(res.Output), nil
}

// RepoExists probes repo metadata. A failed probe means "not visible yet",
// which during fork creation is indistinguishable from "not created yet".
func (c *Client) RepoExists(ctx context.Context, owner, repo string) bool {
	res := c.run(ctx, "repo", "view", owner+"/"+repo, "--json", "name")
	return res.Success
}

// ForkRepo requests a fork of owner/repo under the authenticated user,
// without cloning. Fork creation on the remote is asynchronous.
func (c *Client) ForkRepo(ctx context.Context, owner, repo string) error {
	res := c.run(ctx, "repo", "fork", owner+"/"+repo, "--clone=false")
	if !res.Success {
		return fmt.Errorf("fork %s/%s: %s", owner, repo, res.Error)
	}
	return nil
}

// SyncFork syncs the user's fork with its upstream.
func (c *Client) SyncFork(ctx context.Context, user, repo string) error {
	res := c.run(ctx, "repo", "sync", user+"/"+repo)
	if !res.Success {
		return fmt.Errorf("sync %s/%s: %s", user, repo, res.Error)
	}
	return nil
}

// RepoOverview fetches lightweight metadata for a target repo.
func (c *Client) RepoOverview(ctx context.Context, owner, repo string) (*models.RepoMeta, error) {
	res := c.run(ctx, "repo", "view", owner+"/"+repo,
		"--json", "stargazerCount,primaryLanguage,description,issues")
	if !res.Success {
		return nil, fmt.Errorf("repo overview %s/%s: %s", owner, repo, res.Error)
	}
	var raw struct {
		StargazerCount  int    `json:"stargazerCount"`
		Description     string `json:"description"`
		PrimaryLanguage struct {
			Name string `json:"name"`
		} `json:"primaryLanguage"`
		Issues struct {
			TotalCount int `json:"totalCount"`
		} `json:"issues"`
	}
	if err := json.Unmarshal([]byte(res.Output), &raw); err != nil {
		return nil, fmt.Errorf("parse repo overview: %w", err)
	}
	return &models.RepoMeta{
		Stars:       raw.StargazerCount,
		Language:    raw.PrimaryLanguage.Name,
		Description: raw.Description,
		OpenIssues:  raw.Issues.TotalCount,
	}, nil
}

// ListIssues fetches open issues for a repo in canonical shape.
func (c *Client) ListIssues(ctx context.Context, owner, repo string) ([]models.IssueRecord, error) {
	res := c.run(ctx, "issue", "list", "-R", owner+"/"+repo,
		"--json", "number,title,url,labels,assignees,comments,createdAt,updatedAt")
	if !res.Success {
		return nil, fmt.Errorf("list issues %s/%s: %s", owner, repo, res.Error)
	}
	var issues []models.IssueRecord
	if err := json.Unmarshal([]byte(res.Output), &issues); err != nil {
		return nil, fmt.Errorf("parse issues: %w", err)
	}
	return issues, nil
}

// IssueBody fetches the body text of one issue.
func (c *Client) IssueBody(ctx context.Context, owner, repo string, number int) (string, error) {
	res := c.run(ctx, "issue", "view", strconv.Itoa(number),
		"-R", owner+"/"+repo, "--json", "body")
	if !res.Success {
		return "", fmt.Errorf("view issue %s/%s#%d: %s", owner, repo, number, res.Error)
	}
	var raw struct {
		Body string `json:"body"`
	}
	if err := json.Unmarshal([]byte(res.Output), &raw); err != nil {
		return "", fmt.Errorf("parse issue body: %w", err)
	}
	return raw.Body, nil
}

// ContributingFile fetches and decodes the repo's CONTRIBUTING.md, if any.
func (c *Client) ContributingFile(ctx context.Context, owner, repo string) (string, error) {
	res := c.run(ctx, "api",
		fmt.Sprintf("/repos/%s/%s/contents/CONTRIBUTING.md", owner, repo),
		"--jq", ".content")
	if !res.Success {
		return "", fmt.Errorf("fetch CONTRIBUTING.md: %s", res.Error)
	}
	// The contents API returns base64 with embedded newlines.
	compact := strings.ReplaceAll(strings.TrimSpace(res.Output), "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return "", fmt.Errorf("decode CONTRIBUTING.md: %w", err)
	}
	return string(decoded), nil
}

// CreateIssue opens an issue and returns its URL.
func (c *Client) CreateIssue(ctx context.Context, owner, repo, title, body string) (string, error) {
	res := c.run(ctx, "issue", "create", "-R", owner+"/"+repo,
		"--title", title, "--body", body)
	if !res.Success {
		return "", fmt.Errorf("create issue on %s/%s: %s", owner, repo, res.Error)
	}
	return strings.TrimSpace(res.Output), nil
}

// AssignIssue adds an assignee to an issue.
func (c *Client) AssignIssue(ctx context.Context, owner, repo string, number int, login string) error {
	res := c.run(ctx, "issue", "edit", strconv.Itoa(number),
		"-R", owner+"/"+repo, "--add-assignee", "@"+login)
	if !res.Success {
		return fmt.Errorf("assign @%s to %s/%s#%d: %s", login, owner, repo, number, res.Error)
	}
	return nil
}

// ListForkPRs fetches open PRs on one of our forks.
func (c *Client) ListForkPRs(ctx context.Context, user, repo string) ([]models.ForkPR, error) {
	res := c.run(ctx, "pr", "list", "-R", user+"/"+repo,
		"--json", "number,title,url,headRefName,baseRefName,additions,deletions,changedFiles,reviewDecision,isDraft,createdAt")
	if !res.Success {
		return nil, fmt.Errorf("list PRs %s/%s: %s", user, repo, res.Error)
	}
	var prs []models.ForkPR
	if err := json.Unmarshal([]byte(res.Output), &prs); err != nil {
		return nil, fmt.Errorf("parse PRs: %w", err)
	}
	return prs, nil
}

// PRHead holds the branch info captured before a merge destroys it.
type PRHead struct {
	Branch     string `json:"headRefName"`
	Title      string `json:"title"`
	BaseBranch string `json:"baseRefName"`
	IsDraft    bool   `json:"isDraft"`
}

// ViewPRHead fetches head branch, title, base branch, and draft status of a
// fork PR.
func (c *Client) ViewPRHead(ctx context.Context, user, repo string, number int) (*PRHead, error) {
	res := c.run(ctx, "pr", "view", strconv.Itoa(number), "-R", user+"/"+repo,
		"--json", "headRefName,title,baseRefName,isDraft")
	if !res.Success {
		return nil, fmt.Errorf("view PR %s/%s#%d: %s", user, repo, number, res.Error)
	}
	var head PRHead
	if err := json.Unmarshal([]byte(res.Output), &head); err != nil {
		return nil, fmt.Errorf("parse PR head: %w", err)
	}
	return &head, nil
}

// MarkPRReady converts a draft PR to ready-for-review.
func (c *Client) MarkPRReady(ctx context.Context, user, repo string, number int) error {
	res := c.run(ctx, "pr", "ready", strconv.Itoa(number), "-R", user+"/"+repo)
	if !res.Success {
		return fmt.Errorf("mark PR %s/%s#%d ready: %s", user, repo, number, res.Error)
	}
	return nil
}

// MergePR squash-merges a fork PR. Uses the extended timeout.
func (c *Client) MergePR(ctx context.Context, user, repo string, number int) error {
	res := c.runner.Run(ctx, c.mergeTimeout,
		"pr", "merge", strconv.Itoa(number), "-R", user+"/"+repo, "--squash")
	if !res.Success {
		return fmt.Errorf("merge PR %s/%s#%d: %s", user, repo, number, res.Error)
	}
	return nil
}

// CreatePR opens a PR against the upstream repo from the user's fork branch
// and returns the PR URL. Uses the extended timeout.
func (c *Client) CreatePR(ctx context.Context, originSlug, head, base, title, body string) (string, error) {
	res := c.runner.Run(ctx, c.mergeTimeout,
		"pr", "create", "-R", originSlug,
		"--head", head, "--base", base,
		"--title", title, "--body", body)
	if !res.Success {
		return "", fmt.Errorf("create PR on %s: %s", originSlug, res.Error)
	}
	return strings.TrimSpace(res.Output), nil
}

// PRStatus is the remote state of a submitted PR as reported by gh.
type PRStatus struct {
	State          string     `json:"state"`
	ReviewDecision string     `json:"reviewDecision"`
	MergedAt       *time.Time `json:"mergedAt"`
	ClosedAt       *time.Time `json:"closedAt"`
}

// ViewPRStatus re-queries a submitted PR by URL.
func (c *Client) ViewPRStatus(ctx context.Context, prURL string) (*PRStatus, error) {
	res := c.run(ctx, "pr", "view", prURL,
		"--json", "state,reviewDecision,mergedAt,closedAt")
	if !res.Success {
		return nil, fmt.Errorf("view PR %s: %s", prURL, res.Error)
	}
	var status PRStatus
	if err := json.Unmarshal([]byte(res.Output), &status); err != nil {
		return nil, fmt.Errorf("parse PR status: %w", err)
	}
	return &status, nil
}

// ParsePRNumber extracts the trailing PR number from a GitHub PR URL.
// Returns nil when the URL does not end in a number.
func ParsePRNumber(prURL string) *int {
	trimmed := strings.TrimSuffix(prURL, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return nil
	}
	n, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil {
		return nil
	}
	return &n
}
