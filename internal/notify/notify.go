// Package notify sends pipeline event notifications. Notifications are
// best-effort side channels: senders never return errors and a missing
// webhook URL silently disables them.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Discord embed accent colors by event severity.
const (
	ColorSuccess = 0x2ECC71
	ColorInfo    = 0x3498DB
	ColorWarning = 0xF39C12
)

const webhookTimeout = 5 * time.Second

// Notifier receives pipeline milestone events.
type Notifier interface {
	GoTierIssue(repoSlug string, number int, title string, cvs int)
	AgentPRReady(originSlug, branch, title string)
	UpstreamMerged(originSlug, prURL, title string)
	UpstreamFeedback(originSlug, prURL, decision string)
}

// Noop discards all notifications.
type Noop struct{}

func (Noop) GoTierIssue(string, int, string, int)  {}
func (Noop) AgentPRReady(string, string, string)   {}
func (Noop) UpstreamMerged(string, string, string) {}
func (Noop) UpstreamFeedback(string, string, string) {
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	URL         string `json:"url,omitempty"`
}

// Discord posts events as webhook embeds.
type Discord struct {
	webhookURL string
	http       *http.Client
}

// NewDiscord returns a Discord notifier. With an empty URL every event is a
// no-op.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		http:       &http.Client{Timeout: webhookTimeout},
	}
}

func (d *Discord) send(e embed) {
	if d.webhookURL == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{"embeds": []embed{e}})
	if err != nil {
		return
	}
	resp, err := d.http.Post(d.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return
	}
	_ = resp.Body.Close()
}

func (d *Discord) GoTierIssue(repoSlug string, number int, title string, cvs int) {
	d.send(embed{
		Title:       fmt.Sprintf("Go-tier issue: %s#%d", repoSlug, number),
		Description: fmt.Sprintf("%s\nCVS %d", title, cvs),
		Color:       ColorInfo,
	})
}

func (d *Discord) AgentPRReady(originSlug, branch, title string) {
	d.send(embed{
		Title:       fmt.Sprintf("Agent PR merged on fork of %s", originSlug),
		Description: fmt.Sprintf("%s\nBranch `%s` is queued for upstream submission", title, branch),
		Color:       ColorInfo,
	})
}

func (d *Discord) UpstreamMerged(originSlug, prURL, title string) {
	d.send(embed{
		Title:       fmt.Sprintf("Upstream PR merged: %s", originSlug),
		Description: title,
		Color:       ColorSuccess,
		URL:         prURL,
	})
}

func (d *Discord) UpstreamFeedback(originSlug, prURL, decision string) {
	color := ColorWarning
	if decision == "APPROVED" {
		color = ColorSuccess
	}
	d.send(embed{
		Title:       fmt.Sprintf("Review feedback on %s", originSlug),
		Description: fmt.Sprintf("Decision: %s", decision),
		Color:       color,
		URL:         prURL,
	})
}
