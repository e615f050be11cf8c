package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildDraftPrompt(t *testing.T) {
	t.Run("with change title", func(t *testing.T) {
		system, user := buildDraftPrompt("fastify/fastify", 42, "Crash on empty payload", "copilot/fix-42", "Guard against empty payloads")

		assert.Contains(t, system, `"title"`)
		assert.Contains(t, system, `"body"`)
		assert.Contains(t, system, "## Summary")
		assert.Contains(t, system, "Fixes #")

		assert.Contains(t, user, "fastify/fastify")
		assert.Contains(t, user, "#42 Crash on empty payload")
		assert.Contains(t, user, "copilot/fix-42")
		assert.Contains(t, user, "Guard against empty payloads")
	})

	t.Run("without change title", func(t *testing.T) {
		_, user := buildDraftPrompt("fastify/fastify", 42, "Crash on empty payload", "copilot/fix-42", "")

		assert.NotContains(t, user, "Change summary")
	})
}

func TestStripFences(t *testing.T) {
	t.Run("fenced json", func(t *testing.T) {
		got := stripFences("```json\n{\"title\":\"x\"}\n```")
		assert.Equal(t, `{"title":"x"}`, got)
	})

	t.Run("bare json unchanged", func(t *testing.T) {
		got := stripFences(`{"title":"x"}`)
		assert.Equal(t, `{"title":"x"}`, got)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		got := stripFences("  {\"a\":1}\n")
		assert.Equal(t, `{"a":1}`, got)
	})
}
