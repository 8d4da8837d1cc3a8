package bookloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

func writeBook(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "part-one"), 0755))
	files := map[string]string{
		"part-one/01-intro.md": "# The Beginning\n\nIt was a dark and stormy night.\n",
		"part-one/02-sea.md":   "# The Voyage\n\nThe ship sailed south with the trade winds.\n",
		"notes.txt":            "not markdown, must be ignored",
		"empty.md":             "```\ncode only\n```\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeBook(t)

	docs, err := Load(dir, "book-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "part-one/01-intro", docs[0].ID)
	assert.Equal(t, "book-1", docs[0].CorpusID)
	assert.Equal(t, "The Beginning", docs[0].Chapter)
	assert.Equal(t, "It was a dark and stormy night.", docs[0].Text)

	assert.Equal(t, "part-one/02-sea", docs[1].ID)
	assert.Equal(t, "The Voyage", docs[1].Chapter)
}

func TestLoad_TitleLiftedFromBody(t *testing.T) {
	dir := t.TempDir()
	content := "# The Storm\n\nRain fell for days.\n\n## Landfall\n\nThe coast appeared at dawn.\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "storm.md"), []byte(content), 0644))

	docs, err := Load(dir, "book-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Only the H1 line leaves the body; the H2 stays as unwrapped text.
	assert.Equal(t, "The Storm", docs[0].Chapter)
	assert.Equal(t, "Rain fell for days.\n\nLandfall\n\nThe coast appeared at dawn.", docs[0].Text)
}

func TestLoad_NoHeadingFallsBackToFilename(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "closing-words.md"), []byte("The end.\n"), 0644))

	docs, err := Load(dir, "book-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "closing words", docs[0].Chapter)
	assert.Equal(t, "The end.", docs[0].Text)
}

func TestLoad_Deterministic(t *testing.T) {
	dir := writeBook(t)

	first, err := Load(dir, "book-1")
	require.NoError(t, err)
	second, err := Load(dir, "book-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLoad_MissingCorpusID(t *testing.T) {
	_, err := Load(t.TempDir(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLoad_MissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"), "book-1")
	assert.Error(t, err)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "part-one/01-intro", DocumentID(filepath.Join("part-one", "01-intro.md")))
	assert.Equal(t, "chapter", DocumentID("chapter.markdown"))
}

func TestStripMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "headings",
			input: "# Title\n\n## Subtitle\n\nBody text.",
			want:  "Title\n\nSubtitle\n\nBody text.",
		},
		{
			name:  "links keep text",
			input: "See [the appendix](http://example.com) for details.",
			want:  "See the appendix for details.",
		},
		{
			name:  "emphasis removed",
			input: "This is **bold** and *italic*.",
			want:  "This is bold and italic.",
		},
		{
			name:  "code blocks removed",
			input: "Before.\n```\nfunc main() {}\n```\nAfter.",
			want:  "Before.\n\nAfter.",
		},
		{
			name:  "list markers removed",
			input: "- first\n- second\n1. third",
			want:  "first\nsecond\nthird",
		},
		{
			name:  "blockquotes unwrapped",
			input: "> quoted wisdom",
			want:  "quoted wisdom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdown(tt.input))
		})
	}
}
