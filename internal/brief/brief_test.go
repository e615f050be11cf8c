package brief

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolffm/dispatch/internal/models"
)

func TestTitle(t *testing.T) {
	got := Title("fastify/fastify", 42, "Fix crash on empty payload")
	assert.Equal(t, "[OSS] Fix fastify/fastify#42: Fix crash on empty payload", got)
}

func TestBuildIncludesIssueDetails(t *testing.T) {
	body := Build(Input{
		OriginSlug:  "fastify/fastify",
		IssueNumber: 42,
		IssueTitle:  "Fix crash on empty payload",
		IssueURL:    "https://github.com/fastify/fastify/issues/42",
		IssueBody:   "Server panics when the payload is empty.",
	})

	assert.Contains(t, body, "**Repository:** fastify/fastify")
	assert.Contains(t, body, "#42 — Fix crash on empty payload")
	assert.Contains(t, body, "https://github.com/fastify/fastify/issues/42")
	assert.Contains(t, body, "Server panics when the payload is empty.")
	assert.Contains(t, body, "## Instructions")
}

func TestBuildEmptyIssueBodyFallback(t *testing.T) {
	body := Build(Input{OriginSlug: "fastify/fastify", IssueNumber: 1, IssueBody: "   \n"})
	assert.Contains(t, body, "*No description provided.*")
}

func TestBuildContributingTruncation(t *testing.T) {
	long := strings.Repeat("x", ContributingLimit+500)
	body := Build(Input{
		OriginSlug:   "fastify/fastify",
		IssueNumber:  1,
		Contributing: long,
	})

	assert.Contains(t, body, "<details>")
	assert.Contains(t, body, "*(truncated)*")
	assert.NotContains(t, body, strings.Repeat("x", ContributingLimit+1))
}

func TestBuildShortContributingNotTruncated(t *testing.T) {
	body := Build(Input{
		OriginSlug:   "fastify/fastify",
		IssueNumber:  1,
		Contributing: "Run npm test before opening a PR.",
	})

	assert.Contains(t, body, "Run npm test before opening a PR.")
	assert.NotContains(t, body, "*(truncated)*")
}

func TestBuildDossierRulesTakePrecedence(t *testing.T) {
	body := Build(Input{
		OriginSlug:   "fastify/fastify",
		IssueNumber:  1,
		Contributing: "raw contributing text",
		Dossier: &models.Dossier{
			Slug:              "fastify-fastify",
			ContributionRules: models.TextList{"Sign the CLA", "Target the main branch"},
		},
	})

	assert.Contains(t, body, "## Contribution Rules")
	assert.Contains(t, body, "- Sign the CLA")
	assert.NotContains(t, body, "raw contributing text")
}

func TestBuildDossierBlobRendersAsSingleItem(t *testing.T) {
	var d models.Dossier
	require.NoError(t, json.Unmarshal(
		[]byte(`{"contributionRules":"Sign the CLA before opening a PR."}`), &d))

	body := Build(Input{
		OriginSlug:  "fastify/fastify",
		IssueNumber: 1,
		Dossier:     &d,
	})

	assert.Contains(t, body, "## Contribution Rules")
	assert.Contains(t, body, "- Sign the CLA before opening a PR.\n")
	assert.NotContains(t, body, "int32")
}

func TestBuildQuirksAndPatterns(t *testing.T) {
	body := Build(Input{
		OriginSlug:  "fastify/fastify",
		IssueNumber: 1,
		Dossier: &models.Dossier{
			Quirks: []models.Quirk{
				{Description: "CI requires signed commits", Impact: models.QuirkImpactBlocker},
				{Description: "Slow review turnaround", Impact: models.QuirkImpactWarning},
				{Description: "Uses pnpm", Impact: models.QuirkImpactNote},
			},
			SuccessPatterns: models.TextList{"Small diffs merge fastest"},
		},
	})

	assert.Contains(t, body, "[BLOCKER] CI requires signed commits")
	assert.Contains(t, body, "[WARNING] Slow review turnaround")
	assert.Contains(t, body, "[NOTE] Uses pnpm")
	assert.Contains(t, body, "- Small diffs merge fastest")
}
