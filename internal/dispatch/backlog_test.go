package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkdownBacklog(t *testing.T) {
	src := []byte(`# Backlog

## Task One
Do the thing.

## Task Two
- Bullet A
- Bullet B
`)
	entries, err := ParseMarkdownBacklog(src)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Task One", entries[0].Title)
	assert.Contains(t, entries[0].Body, "Do the thing")
	assert.Equal(t, "Task Two", entries[1].Title)
	assert.Contains(t, entries[1].Body, "Bullet A")
}

func TestParseMarkdownBacklogKeepsInlineCode(t *testing.T) {
	entries, err := ParseMarkdownBacklog([]byte("## Touch `docs/**` only\nbody\n"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Touch `docs/**` only", entries[0].Title)
}

func TestParseMarkdownBacklogIgnoresHeadingsInCodeFences(t *testing.T) {
	src := []byte("## Real task\n" +
		"```\n## not a task\n```\n" +
		"more body\n")
	entries, err := ParseMarkdownBacklog(src)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Real task", entries[0].Title)
	assert.Contains(t, entries[0].Body, "## not a task")
}

func TestParseMarkdownBacklogRequiresHeading(t *testing.T) {
	_, err := ParseMarkdownBacklog([]byte("No headings here\n"))
	assert.Error(t, err)
}

func TestParseJSONBacklogList(t *testing.T) {
	entries, err := parseJSONBacklog([]byte(`[{"title":"T1","body":"B1"},{"title":"T2"}]`))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "T1", entries[0].Title)
	assert.Equal(t, "B1", entries[0].Body)
	assert.Equal(t, "T2", entries[1].Title)
}

func TestParseJSONBacklogWrapped(t *testing.T) {
	entries, err := parseJSONBacklog([]byte(`{"tasks":[{"title":"T1","labels":["x"]}]}`))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"x"}, entries[0].Labels)
}

func TestParseJSONBacklogRejects(t *testing.T) {
	for name, src := range map[string]string{
		"object without tasks": `{"title":"T1"}`,
		"empty list":           `[]`,
		"missing title":        `[{"body":"B1"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseJSONBacklog([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadBacklogUnknownExtensionFallsBack(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "backlog")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"title":"T1"}]`), 0o644))
	entries, err := LoadBacklog(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "T1", entries[0].Title)

	mdPath := filepath.Join(dir, "backlog2")
	require.NoError(t, os.WriteFile(mdPath, []byte("## T2\nbody\n"), 0o644))
	entries, err = LoadBacklog(mdPath)
	require.NoError(t, err)
	assert.Equal(t, "T2", entries[0].Title)
}
