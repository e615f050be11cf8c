package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DraftedPR holds the LLM-generated title and body for an upstream pull
// request.
type DraftedPR struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Client wraps the Anthropic API for PR drafting.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildDraftPrompt constructs the system and user prompts for PR drafting.
func buildDraftPrompt(originSlug string, issueNumber int, issueTitle, branch, changeTitle string) (system string, user string) {
	system = `You draft pull request descriptions for open source contributions. Return a JSON object with exactly two fields:

- "title": a concise PR title in the imperative mood, suitable for the upstream project's history
- "body": a PR body in GitHub markdown with a "## Summary" section (2-4 sentences on what changed and why), a "## Changes" bullet list, and a closing line referencing the fixed issue as "Fixes #<number>"

Rules:
- Write as an external contributor addressing the upstream maintainers
- Stay factual: describe only what the provided change title and issue imply, never invent implementation details
- Keep the tone plain and professional, no emoji
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Upstream repository: ")
	sb.WriteString(originSlug)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Upstream issue: #%d %s\n", issueNumber, issueTitle)
	sb.WriteString("Branch with the fix: ")
	sb.WriteString(branch)
	sb.WriteString("\n")
	if changeTitle != "" {
		sb.WriteString("Change summary from the fork PR: ")
		sb.WriteString(changeTitle)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// stripFences removes markdown code fencing the model sometimes wraps JSON in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// DraftPR asks the LLM for an upstream PR title and body.
func (c *Client) DraftPR(ctx context.Context, originSlug string, issueNumber int, issueTitle, branch, changeTitle string) (*DraftedPR, error) {
	systemPrompt, userPrompt := buildDraftPrompt(originSlug, issueNumber, issueTitle, branch, changeTitle)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	text = stripFences(text)

	var draft DraftedPR
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return &draft, nil
}
