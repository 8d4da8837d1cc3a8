// Package bookloader reads book content from a directory of markdown
// files and converts it into documents ready for ingestion.
//
// Document IDs are derived from file paths, not generated, so reloading
// the same directory always produces the same document set. The reindex
// diff depends on that stability.
package bookloader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/bookwise/internal/core/domain"
)

// Load reads every markdown file under dir and returns one document per
// file, ordered by path. Files that strip down to nothing are skipped.
func Load(dir, corpusID string) ([]domain.Document, error) {
	if corpusID == "" {
		return nil, fmt.Errorf("%w: missing corpus id", domain.ErrInvalidInput)
	}

	var docs []domain.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMarkdown(path) {
			return nil
		}

		doc, err := loadFile(path, dir, corpusID)
		if err != nil {
			return err
		}
		if doc != nil {
			docs = append(docs, *doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading book from %s: %w", dir, err)
	}
	return docs, nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func loadFile(path, root, corpusID string) (*domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	// The first H1 becomes the chapter label, so it is lifted out of the
	// body before stripping to avoid duplicating the title in the text.
	body, title := splitTitle(string(raw))
	if title == "" {
		title = titleFromPath(rel)
	}

	text := StripMarkdown(body)
	if text == "" {
		return nil, nil
	}

	return &domain.Document{
		ID:       DocumentID(rel),
		CorpusID: corpusID,
		Chapter:  title,
		Text:     text,
	}, nil
}

// DocumentID derives the stable document ID from a relative file path.
func DocumentID(relPath string) string {
	id := filepath.ToSlash(relPath)
	ext := filepath.Ext(id)
	return strings.TrimSuffix(id, ext)
}

// splitTitle extracts the chapter title from the first H1 heading and
// removes that line from the body. Content without an H1 comes back
// unchanged with an empty title; later headings are left for
// StripMarkdown to unwrap in place.
func splitTitle(content string) (body, title string) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title = strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
			body = strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
			return body, title
		}
	}
	return content, ""
}

// titleFromPath falls back to a cleaned-up filename when a file has no
// H1 heading.
func titleFromPath(relPath string) string {
	filename := filepath.Base(relPath)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}

var (
	codeBlockRe    = regexp.MustCompile("(?s)```[^`]*```")
	inlineCodeRe   = regexp.MustCompile("`[^`]+`")
	imageRe        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	linkRe         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	headingRe      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquoteRe   = regexp.MustCompile(`(?m)^>\s*`)
	hrRe           = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	listMarkerRe   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	numberedListRe = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown removes common markdown formatting, leaving plain text
// for chunking. This is a simplified implementation that handles common
// cases.
func StripMarkdown(content string) string {
	content = codeBlockRe.ReplaceAllString(content, "")
	content = inlineCodeRe.ReplaceAllString(content, "")
	content = imageRe.ReplaceAllString(content, "")

	// Convert links [text](url) to just text
	content = linkRe.ReplaceAllString(content, "$1")

	// Remove heading markers (# ## ### etc)
	content = headingRe.ReplaceAllString(content, "")

	// Remove bold/italic markers
	content = strings.ReplaceAll(content, "**", "")
	content = strings.ReplaceAll(content, "__", "")
	content = strings.ReplaceAll(content, "*", "")
	content = strings.ReplaceAll(content, "_", " ")

	content = blockquoteRe.ReplaceAllString(content, "")
	content = hrRe.ReplaceAllString(content, "")
	content = listMarkerRe.ReplaceAllString(content, "")
	content = numberedListRe.ReplaceAllString(content, "")
	content = multiNewlineRe.ReplaceAllString(content, "\n\n")

	return strings.TrimSpace(content)
}
