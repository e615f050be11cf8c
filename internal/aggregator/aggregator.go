// Package aggregator is a typed client for the optional aggregator service,
// an external collaborator that pre-computes targets, scored issues, repo
// health, and dossiers. Every read returns (value, ok): any transport,
// status, or decode failure yields the zero value and ok=false, so callers
// fall back to local computation without inspecting errors.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolffm/dispatch/internal/models"
)

const requestTimeout = 10 * time.Second

// Client talks to one aggregator instance. A zero-URL client is valid and
// reports Enabled() == false.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the aggregator at baseURL. Empty baseURL means
// the aggregator collaborator is not configured.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Enabled reports whether an aggregator URL is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

func (c *Client) get(ctx context.Context, path string, out any) bool {
	if !c.Enabled() {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(out) == nil
}

func (c *Client) post(ctx context.Context, path string, payload any) bool {
	if !c.Enabled() {
		return false
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Watchlist fetches the aggregator's view of tracked targets.
func (c *Client) Watchlist(ctx context.Context) ([]models.Target, bool) {
	var targets []models.Target
	if !c.get(ctx, "/api/oss/watchlist", &targets) {
		return nil, false
	}
	return targets, true
}

// ScoredIssues fetches pre-scored issues across all targets.
func (c *Client) ScoredIssues(ctx context.Context) ([]models.ScoredIssue, bool) {
	var issues []models.ScoredIssue
	if !c.get(ctx, "/api/oss/issues", &issues) {
		return nil, false
	}
	return issues, true
}

// RepoHealth fetches health scores for one target slug.
func (c *Client) RepoHealth(ctx context.Context, slug string) (models.RepoHealth, bool) {
	var health models.RepoHealth
	if !c.get(ctx, "/api/oss/health/"+url.PathEscape(slug), &health) {
		return models.RepoHealth{}, false
	}
	return health, true
}

// Dossier fetches the contribution dossier for one target slug.
func (c *Client) Dossier(ctx context.Context, slug string) (*models.Dossier, bool) {
	var d models.Dossier
	if !c.get(ctx, "/api/oss/dossier/"+url.PathEscape(slug), &d) {
		return nil, false
	}
	return &d, true
}

// TriggerRefresh asks the aggregator to recompute its data.
func (c *Client) TriggerRefresh(ctx context.Context) bool {
	return c.post(ctx, "/api/oss/refresh", struct{}{})
}

// claimSlug converts "owner/repo" to the hyphenated form claim endpoints use.
func claimSlug(originSlug string) string {
	return strings.ReplaceAll(originSlug, "/", "-")
}

// ReportClaim tells the aggregator an issue has been claimed. Best-effort:
// the bool is informational and callers never fail on it.
func (c *Client) ReportClaim(ctx context.Context, originSlug string, issueNumber int) bool {
	return c.post(ctx, "/api/oss/claims", map[string]any{
		"repo":  claimSlug(originSlug),
		"issue": issueNumber,
	})
}

// ReportUnclaim releases a previously reported claim. Best-effort.
func (c *Client) ReportUnclaim(ctx context.Context, originSlug string, issueNumber int) bool {
	return c.post(ctx, fmt.Sprintf("/api/oss/claims/%s/%d/release", claimSlug(originSlug), issueNumber), struct{}{})
}

// Claims fetches issue IDs claimed by other contributors.
func (c *Client) Claims(ctx context.Context) ([]string, bool) {
	var ids []string
	if !c.get(ctx, "/api/oss/claims", &ids) {
		return nil, false
	}
	return ids, true
}
