package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolffm/dispatch/internal/aggregator"
	"github.com/wolffm/dispatch/internal/cache"
	"github.com/wolffm/dispatch/internal/fork"
	"github.com/wolffm/dispatch/internal/gh"
	"github.com/wolffm/dispatch/internal/models"
	"github.com/wolffm/dispatch/internal/pipeline"
	"github.com/wolffm/dispatch/internal/poll"
	"github.com/wolffm/dispatch/internal/store"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

// fakeRunner returns canned gh results keyed by a substring of the joined
// args.
type fakeRunner struct {
	results map[string]gh.Result
}

func (f *fakeRunner) Run(_ context.Context, _ time.Duration, args ...string) gh.Result {
	joined := strings.Join(args, " ")
	for key, res := range f.results {
		if strings.Contains(joined, key) {
			return res
		}
	}
	return gh.Result{Success: false, Error: "no canned result"}
}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *fakeRunner) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	runner := &fakeRunner{results: map[string]gh.Result{}}
	ghc := gh.NewClient(runner)

	p := pipeline.New(st, ghc, fork.New(ghc, time.Minute, time.Second),
		aggregator.New(""), cache.New(t.TempDir(), cache.DefaultTTL, false),
		nil, pipeline.Options{AgentLogin: "Copilot", Workers: 2})
	poller := poll.New(st, ghc, nil, 2)

	srv := NewServer(p, poller)
	require.NotNil(t, srv)

	return srv, st, runner
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Tool tests
// ---------------------------------------------------------------------------

func TestMCPServerRegistersTools(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}

func TestHandleAddTarget(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleAddTarget(ctx, callToolReq("dispatch_add_target", map[string]any{
		"owner": "fastify",
		"repo":  "fastify",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "fastify-fastify", out["slug"])
	assert.Equal(t, true, out["created"])

	entries, err := st.ListWatchlist(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHandleAddTargetIdempotent(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	req := callToolReq("dispatch_add_target", map[string]any{"owner": "fastify", "repo": "fastify"})

	_, err := srv.handleAddTarget(ctx, req)
	require.NoError(t, err)

	result, err := srv.handleAddTarget(ctx, req)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, false, out["created"])
}

func TestHandleAddTargetMissingParam(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleAddTarget(context.Background(),
		callToolReq("dispatch_add_target", map[string]any{"owner": "fastify"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "repo")
}

func TestHandleRemoveTarget(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	_, _, err := st.AddWatchlistEntry(ctx, "fastify", "fastify")
	require.NoError(t, err)

	result, err := srv.handleRemoveTarget(ctx,
		callToolReq("dispatch_remove_target", map[string]any{"owner": "fastify", "repo": "fastify"}))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, true, out["removed"])
}

func TestHandleScoredIssuesMinCVS(t *testing.T) {
	srv, st, runner := newTestServer(t)
	ctx := context.Background()

	_, _, err := st.AddWatchlistEntry(ctx, "fastify", "fastify")
	require.NoError(t, err)

	now := time.Now().UTC()
	issuesJSON, err := json.Marshal([]map[string]any{
		{
			"number": 1, "title": "Fix crash", "url": "u1",
			"labels": []string{"good first issue"}, "assignees": []any{},
			"comments": 2, "createdAt": now.Add(-time.Hour), "updatedAt": now.Add(-time.Hour),
		},
		{
			"number": 2, "title": "Docs typo", "url": "u2",
			"labels": []any{}, "assignees": []any{},
			"comments": 1, "createdAt": now.Add(-time.Hour), "updatedAt": now.Add(-time.Hour),
		},
	})
	require.NoError(t, err)
	runner.results["issue list"] = gh.Result{Success: true, Output: string(issuesJSON)}

	result, err := srv.handleScoredIssues(ctx,
		callToolReq("dispatch_scored_issues", map[string]any{"min_cvs": 60}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out []models.ScoredIssue
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 1)
	assert.Equal(t, 70, out[0].CVS)
}

func TestHandleSelectIssueAlreadySelected(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	req := callToolReq("dispatch_select_issue", map[string]any{
		"origin_slug":  "fastify/fastify",
		"issue_number": 42,
		"title":        "Fix crash",
	})

	_, err := srv.handleSelectIssue(ctx, req)
	require.NoError(t, err)

	result, err := srv.handleSelectIssue(ctx, req)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, true, out["already_selected"])
}

func TestHandleForkAndAssign(t *testing.T) {
	srv, st, runner := newTestServer(t)
	ctx := context.Background()

	runner.results["api user"] = gh.Result{Success: true, Output: "wolffm\n"}
	runner.results["repo view wolffm/fastify"] = gh.Result{Success: true, Output: `{"name":"fastify"}`}
	runner.results["repo sync wolffm/fastify"] = gh.Result{Success: true}
	runner.results["issue view 42"] = gh.Result{Success: true, Output: `{"body":"details"}`}
	runner.results["issue create"] = gh.Result{Success: true, Output: "https://github.com/wolffm/fastify/issues/9\n"}
	runner.results["issue edit 9"] = gh.Result{Success: true}

	result, err := srv.handleForkAndAssign(ctx, callToolReq("dispatch_fork_and_assign", map[string]any{
		"origin_slug":  "fastify/fastify",
		"issue_number": 42,
		"title":        "Fix crash",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, false, out["already_assigned"])
	assert.Equal(t, float64(9), out["fork_issue_number"])

	stored, err := st.FindAssignment(ctx, "fastify/fastify", 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestHandleForkAndAssignInvalidSlug(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleForkAndAssign(context.Background(),
		callToolReq("dispatch_fork_and_assign", map[string]any{
			"origin_slug":  "not-a-slug",
			"issue_number": 1,
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "invalid origin_slug")
}

func TestHandleSubmitToOrigin(t *testing.T) {
	srv, st, runner := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.SaveReadyToSubmit(ctx, &models.ReadyToSubmitItem{
		OriginSlug: "fastify/fastify",
		Repo:       "fastify",
		Branch:     "copilot/fix-42",
		Title:      "Fix crash",
		BaseBranch: "main",
	}))
	runner.results["api user"] = gh.Result{Success: true, Output: "wolffm\n"}
	runner.results["pr create"] = gh.Result{Success: true, Output: "https://github.com/fastify/fastify/pull/123\n"}

	result, err := srv.handleSubmitToOrigin(ctx, callToolReq("dispatch_submit_to_origin", map[string]any{
		"origin_slug": "fastify/fastify",
		"branch":      "copilot/fix-42",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out models.SubmittedPR
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "https://github.com/fastify/fastify/pull/123", out.PRURL)
	assert.Equal(t, models.PRStateOpen, out.State)
}

func TestHandleSubmitToOriginUnknownBranch(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleSubmitToOrigin(context.Background(),
		callToolReq("dispatch_submit_to_origin", map[string]any{
			"origin_slug": "fastify/fastify",
			"branch":      "nope",
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandlePollSubmitted(t *testing.T) {
	srv, st, runner := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSubmittedPR(ctx, &models.SubmittedPR{
		OriginSlug: "fastify/fastify",
		PRURL:      "https://github.com/fastify/fastify/pull/1",
		State:      models.PRStateOpen,
	}))
	runner.results["pr view https://github.com/fastify/fastify/pull/1"] = gh.Result{
		Success: true,
		Output:  `{"state":"MERGED","reviewDecision":"","mergedAt":"2026-08-25T10:00:00Z"}`,
	}

	result, err := srv.handlePollSubmitted(ctx, callToolReq("dispatch_poll_submitted", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, float64(1), out["polled"])
	assert.Equal(t, float64(1), out["merged"])
}

func TestHandleSubmittedPRs(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.SaveSubmittedPR(ctx, &models.SubmittedPR{
		OriginSlug:     "fastify/fastify",
		PRURL:          "https://github.com/fastify/fastify/pull/1",
		Title:          "Fix crash",
		State:          models.PRStateOpen,
		ReviewDecision: "APPROVED",
	}))

	result, err := srv.handleSubmittedPRs(ctx, callToolReq("dispatch_submitted_prs", nil))
	require.NoError(t, err)

	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "open", out[0]["state"])
	assert.Equal(t, "APPROVED", out[0]["review_decision"])
}
