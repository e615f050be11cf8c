package gh

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns canned results keyed by a substring of the joined args.
type fakeRunner struct {
	results map[string]Result
	calls   [][]string
}

func (f *fakeRunner) Run(_ context.Context, _ time.Duration, args ...string) Result {
	f.calls = append(f.calls, args)
	joined := strings.Join(args, " ")
	for key, res := range f.results {
		if strings.Contains(joined, key) {
			return res
		}
	}
	return Result{Success: false, Error: "no canned result"}
}

func TestAuthenticatedUser(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"api user": {Success: true, Output: "wolffm\n"},
	}}
	client := NewClient(runner)

	user, err := client.AuthenticatedUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wolffm", user)
}

func TestRepoExists(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"repo view wolffm/fastify": {Success: true, Output: `{"name":"fastify"}`},
	}}
	client := NewClient(runner)

	assert.True(t, client.RepoExists(context.Background(), "wolffm", "fastify"))
	assert.False(t, client.RepoExists(context.Background(), "wolffm", "missing"))
}

func TestListIssuesParsesWireShapes(t *testing.T) {
	// gh can emit labels/assignees as objects; comments as a count or list.
	payload := `[
		{"number":1,"title":"bug","url":"https://github.com/fastify/fastify/issues/1",
		 "labels":[{"name":"good first issue"}],"assignees":[],
		 "comments":3,"createdAt":"2026-08-01T00:00:00Z","updatedAt":"2026-08-20T00:00:00Z"},
		{"number":2,"title":"feat","url":"https://github.com/fastify/fastify/issues/2",
		 "labels":["enhancement"],"assignees":[{"login":"octocat"}],
		 "comments":[{"body":"a"},{"body":"b"}],
		 "createdAt":"2026-08-01T00:00:00Z","updatedAt":"2026-08-20T00:00:00Z"}
	]`
	runner := &fakeRunner{results: map[string]Result{
		"issue list": {Success: true, Output: payload},
	}}
	client := NewClient(runner)

	issues, err := client.ListIssues(context.Background(), "fastify", "fastify")
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, []string{"good first issue"}, []string(issues[0].Labels))
	assert.Empty(t, issues[0].Assignees)
	assert.Equal(t, 3, int(issues[0].Comments))

	assert.Equal(t, []string{"enhancement"}, []string(issues[1].Labels))
	assert.Equal(t, []string{"octocat"}, []string(issues[1].Assignees))
	assert.Equal(t, 2, int(issues[1].Comments))
}

func TestContributingFileDecodesBase64(t *testing.T) {
	content := "# Contributing\n\nBe nice.\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	// The contents API wraps base64 at 60 columns.
	wrapped := encoded[:20] + "\n" + encoded[20:] + "\n"
	runner := &fakeRunner{results: map[string]Result{
		"contents/CONTRIBUTING.md": {Success: true, Output: wrapped},
	}}
	client := NewClient(runner)

	got, err := client.ContributingFile(context.Background(), "fastify", "fastify")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCreateIssueReturnsURL(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"issue create": {Success: true, Output: "https://github.com/wolffm/fastify/issues/7\n"},
	}}
	client := NewClient(runner)

	url, err := client.CreateIssue(context.Background(), "wolffm", "fastify", "title", "body")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/wolffm/fastify/issues/7", url)
}

func TestViewPRHead(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"pr view 12": {Success: true, Output: `{"headRefName":"copilot/fix-7","title":"Fix crash","baseRefName":"main","isDraft":true}`},
	}}
	client := NewClient(runner)

	head, err := client.ViewPRHead(context.Background(), "wolffm", "fastify", 12)
	require.NoError(t, err)
	assert.Equal(t, "copilot/fix-7", head.Branch)
	assert.Equal(t, "main", head.BaseBranch)
	assert.True(t, head.IsDraft)
}

func TestMergePRUsesSquash(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{
		"pr merge": {Success: true},
	}}
	client := NewClient(runner)

	require.NoError(t, client.MergePR(context.Background(), "wolffm", "fastify", 12))
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "--squash")
}

func TestViewPRStatusFailure(t *testing.T) {
	runner := &fakeRunner{results: map[string]Result{}}
	client := NewClient(runner)

	_, err := client.ViewPRStatus(context.Background(), "https://github.com/fastify/fastify/pull/99")
	assert.Error(t, err)
}

func TestParsePRNumber(t *testing.T) {
	n := ParsePRNumber("https://github.com/fastify/fastify/pull/123")
	require.NotNil(t, n)
	assert.Equal(t, 123, *n)

	assert.Nil(t, ParsePRNumber("https://github.com/fastify/fastify/pull/abc"))
	assert.Nil(t, ParsePRNumber(""))
}
