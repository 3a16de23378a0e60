package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSummaryPrompt(t *testing.T) {
	t.Run("with description", func(t *testing.T) {
		system, user := buildSummaryPrompt("Garbage not collected near the park", "Municipal", "Medium")

		assert.Contains(t, system, "JSON object")
		assert.Contains(t, system, `"title"`)
		assert.Contains(t, system, `"acknowledgement"`)
		assert.Contains(t, system, "Do not change")

		assert.Contains(t, user, "Department: Municipal")
		assert.Contains(t, user, "Priority: Medium")
		assert.Contains(t, user, "Garbage not collected near the park")
	})

	t.Run("empty description", func(t *testing.T) {
		_, user := buildSummaryPrompt("   ", "Municipal", "Low")
		assert.Contains(t, user, "(no description given)")
	})

	t.Run("long description kept whole", func(t *testing.T) {
		content := strings.Repeat("x", 10000)
		_, user := buildSummaryPrompt(content, "PWD", "Low")
		assert.Contains(t, user, content)
	})
}

func TestStripFencing(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFencing("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFencing("  {\"a\":1}  "))
}

func TestParseSummary(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		s, err := parseSummary(`{"title":"Overflowing garbage bin","acknowledgement":"Thank you."}`)
		require.NoError(t, err)
		assert.Equal(t, "Overflowing garbage bin", s.Title)
		assert.Equal(t, "Thank you.", s.Acknowledgement)
	})

	t.Run("fenced JSON", func(t *testing.T) {
		s, err := parseSummary("```json\n{\"title\":\"Broken streetlight\",\"acknowledgement\":\"Noted.\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Broken streetlight", s.Title)
	})

	t.Run("missing title", func(t *testing.T) {
		_, err := parseSummary(`{"acknowledgement":"Noted."}`)
		assert.Error(t, err)
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := parseSummary("I cannot help with that")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "raw response")
	})
}
