// Package mcp exposes the dispatch pipeline as MCP tools over stdio, so
// agent frontends can drive the contribution flow directly.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wolffm/dispatch/internal/pipeline"
	"github.com/wolffm/dispatch/internal/poll"
)

// Server wraps the pipeline and polling engine as MCP tools.
type Server struct {
	pipeline *pipeline.Pipeline
	poller   *poll.Engine
}

// NewServer creates the MCP server wrapper.
func NewServer(p *pipeline.Pipeline, poller *poll.Engine) *Server {
	return &Server{pipeline: p, poller: poller}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("dispatch", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listTargetsTool())
	srv.AddTool(s.addTargetTool())
	srv.AddTool(s.removeTargetTool())
	srv.AddTool(s.scoredIssuesTool())
	srv.AddTool(s.selectIssueTool())
	srv.AddTool(s.forkAndAssignTool())
	srv.AddTool(s.listAssignmentsTool())
	srv.AddTool(s.readyToSubmitTool())
	srv.AddTool(s.submitToOriginTool())
	srv.AddTool(s.submittedPRsTool())
	srv.AddTool(s.pollSubmittedTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// dispatch_list_targets
func (s *Server) listTargetsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_list_targets",
		mcp.WithDescription("List watchlist targets with repo metadata or aggregator health. Returns a JSON array with owner, repo, slug, and enrichment."),
	)
	return tool, s.handleListTargets
}

func (s *Server) handleListTargets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targets, err := s.pipeline.Targets(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list targets: %v", err)), nil
	}
	return jsonResult(targets)
}

// dispatch_add_target
func (s *Server) addTargetTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_add_target",
		mcp.WithDescription("Add a repository to the contribution watchlist. Idempotent: re-adding an existing repo reports created=false."),
		mcp.WithString("owner", mcp.Required(), mcp.Description("Repository owner, e.g. fastify")),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name, e.g. fastify")),
	)
	return tool, s.handleAddTarget
}

func (s *Server) handleAddTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: owner"), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}

	entry, created, err := s.pipeline.AddTarget(ctx, owner, repo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add target: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"slug":    entry.Slug,
		"created": created,
	})
}

// dispatch_remove_target
func (s *Server) removeTargetTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_remove_target",
		mcp.WithDescription("Remove a repository from the watchlist."),
		mcp.WithString("owner", mcp.Required(), mcp.Description("Repository owner, e.g. fastify")),
		mcp.WithString("repo", mcp.Required(), mcp.Description("Repository name, e.g. fastify")),
	)
	return tool, s.handleRemoveTarget
}

func (s *Server) handleRemoveTarget(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := request.RequireString("owner")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: owner"), nil
	}
	repo, err := request.RequireString("repo")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: repo"), nil
	}

	removed, err := s.pipeline.RemoveTarget(ctx, owner, repo)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to remove target: %v", err)), nil
	}
	return jsonResult(map[string]any{"owner": owner, "repo": repo, "removed": removed})
}

// dispatch_scored_issues
func (s *Server) scoredIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_scored_issues",
		mcp.WithDescription("List scored candidate issues across the watchlist, highest CVS first. Each issue has id, repo, number, title, cvs (0-100), and cvsTier (go/likely/maybe/risky/skip)."),
		mcp.WithNumber("min_cvs", mcp.Description("Only return issues with at least this CVS")),
	)
	return tool, s.handleScoredIssues
}

func (s *Server) handleScoredIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issues, err := s.pipeline.ScoredIssues(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to score issues: %v", err)), nil
	}

	minCVS := request.GetInt("min_cvs", 0)
	if minCVS > 0 {
		kept := issues[:0]
		for _, issue := range issues {
			if issue.CVS >= minCVS {
				kept = append(kept, issue)
			}
		}
		issues = kept
	}
	return jsonResult(issues)
}

// dispatch_select_issue
func (s *Server) selectIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_select_issue",
		mcp.WithDescription("Mark an upstream issue as selected for contribution. Reports already_selected=true if it was selected before."),
		mcp.WithString("origin_slug", mcp.Required(), mcp.Description("Upstream repo as owner/repo, e.g. fastify/fastify")),
		mcp.WithNumber("issue_number", mcp.Required(), mcp.Description("Upstream issue number")),
		mcp.WithString("title", mcp.Description("Issue title")),
		mcp.WithString("url", mcp.Description("Issue URL")),
	)
	return tool, s.handleSelectIssue
}

func (s *Server) handleSelectIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	originSlug, err := request.RequireString("origin_slug")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: origin_slug"), nil
	}
	issueNumber, err := request.RequireInt("issue_number")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_number"), nil
	}

	sel, err := s.pipeline.SelectIssue(ctx, originSlug, issueNumber,
		request.GetString("title", ""), request.GetString("url", ""))
	if errors.Is(err, pipeline.ErrAlreadySelected) {
		return jsonResult(map[string]any{
			"origin_slug":      sel.OriginSlug,
			"issue_number":     sel.IssueNumber,
			"already_selected": true,
		})
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to select issue: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"origin_slug":      sel.OriginSlug,
		"issue_number":     sel.IssueNumber,
		"already_selected": false,
	})
}

// dispatch_fork_and_assign
func (s *Server) forkAndAssignTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_fork_and_assign",
		mcp.WithDescription("Fork the upstream repo, post a context issue on the fork, and assign the coding agent. Idempotent per upstream issue: reports already_assigned=true on repeats."),
		mcp.WithString("origin_slug", mcp.Required(), mcp.Description("Upstream repo as owner/repo")),
		mcp.WithNumber("issue_number", mcp.Required(), mcp.Description("Upstream issue number")),
		mcp.WithString("title", mcp.Description("Upstream issue title, used in the fork issue title")),
	)
	return tool, s.handleForkAndAssign
}

func (s *Server) handleForkAndAssign(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	originSlug, err := request.RequireString("origin_slug")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: origin_slug"), nil
	}
	issueNumber, err := request.RequireInt("issue_number")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_number"), nil
	}
	owner, repo, ok := pipeline.SplitSlug(originSlug)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("invalid origin_slug: %s", originSlug)), nil
	}

	a, err := s.pipeline.ForkAndAssign(ctx, owner, repo, issueNumber, request.GetString("title", ""))
	if errors.Is(err, pipeline.ErrAlreadyAssigned) {
		return jsonResult(map[string]any{
			"origin_slug":      a.OriginSlug,
			"issue_number":     a.IssueNumber,
			"fork_issue_url":   a.ForkIssueURL,
			"already_assigned": true,
		})
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fork-and-assign failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"origin_slug":       a.OriginSlug,
		"issue_number":      a.IssueNumber,
		"fork_issue_number": a.ForkIssueNumber,
		"fork_issue_url":    a.ForkIssueURL,
		"already_assigned":  false,
	})
}

// dispatch_list_assignments
func (s *Server) listAssignmentsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_list_assignments",
		mcp.WithDescription("List all issues handed to the coding agent, with their fork issue URLs."),
	)
	return tool, s.handleListAssignments
}

func (s *Server) handleListAssignments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	assignments, err := s.pipeline.Assignments(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list assignments: %v", err)), nil
	}
	return jsonResult(assignments)
}

// dispatch_ready_to_submit
func (s *Server) readyToSubmitTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_ready_to_submit",
		mcp.WithDescription("List fork branches whose agent PR was merged and that await upstream submission."),
	)
	return tool, s.handleReadyToSubmit
}

func (s *Server) handleReadyToSubmit(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.pipeline.ReadyToSubmit(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list ready-to-submit queue: %v", err)), nil
	}
	return jsonResult(items)
}

// dispatch_submit_to_origin
func (s *Server) submitToOriginTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_submit_to_origin",
		mcp.WithDescription("Open an upstream PR for a queued fork branch and start tracking it. The branch must be in the ready-to-submit queue."),
		mcp.WithString("origin_slug", mcp.Required(), mcp.Description("Upstream repo as owner/repo")),
		mcp.WithString("branch", mcp.Required(), mcp.Description("Fork branch to submit")),
		mcp.WithString("title", mcp.Description("PR title override")),
		mcp.WithString("body", mcp.Description("PR body override")),
	)
	return tool, s.handleSubmitToOrigin
}

func (s *Server) handleSubmitToOrigin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	originSlug, err := request.RequireString("origin_slug")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: origin_slug"), nil
	}
	branch, err := request.RequireString("branch")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: branch"), nil
	}

	pr, err := s.pipeline.SubmitToOrigin(ctx, originSlug, branch,
		request.GetString("title", ""), request.GetString("body", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("submission failed: %v", err)), nil
	}
	return jsonResult(pr)
}

// dispatch_submitted_prs
func (s *Server) submittedPRsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_submitted_prs",
		mcp.WithDescription("List tracked upstream PRs with state (open/merged/closed) and review decision."),
	)
	return tool, s.handleSubmittedPRs
}

func (s *Server) handleSubmittedPRs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prs, err := s.pipeline.SubmittedPRs(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list submitted PRs: %v", err)), nil
	}

	type prOut struct {
		OriginSlug     string `json:"origin_slug"`
		PRURL          string `json:"pr_url"`
		Title          string `json:"title"`
		State          string `json:"state"`
		ReviewDecision string `json:"review_decision,omitempty"`
		SubmittedAt    string `json:"submitted_at"`
		LastPolledAt   string `json:"last_polled_at,omitempty"`
	}
	out := make([]prOut, len(prs))
	for i, pr := range prs {
		out[i] = prOut{
			OriginSlug:     pr.OriginSlug,
			PRURL:          pr.PRURL,
			Title:          pr.Title,
			State:          string(pr.State),
			ReviewDecision: pr.ReviewDecision,
			SubmittedAt:    pr.SubmittedAt.Format(time.RFC3339),
		}
		if pr.LastPolledAt != nil {
			out[i].LastPolledAt = pr.LastPolledAt.Format(time.RFC3339)
		}
	}
	return jsonResult(out)
}

// dispatch_poll_submitted
func (s *Server) pollSubmittedTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("dispatch_poll_submitted",
		mcp.WithDescription("Poll all open upstream PRs for state changes. Returns counts of merged, closed, and feedback events from this pass."),
	)
	return tool, s.handlePollSubmitted
}

func (s *Server) handlePollSubmitted(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.poller.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"polled":   summary.Polled,
		"skipped":  summary.Skipped,
		"merged":   summary.Merged,
		"closed":   summary.Closed,
		"feedback": summary.Feedback,
		"failed":   summary.Failed,
	})
}
