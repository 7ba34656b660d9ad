package ingest

import (
	"strings"

	"github.com/dshills/codeatlas/internal/pathutil"
	"github.com/dshills/codeatlas/pkg/types"
)

// MarkdownIngester indexes markdown documents as a single content unit.
// Section-level splitting happens later in the chunker, which understands
// header boundaries; the ingester just classifies and titles the document.
type MarkdownIngester struct{}

// NewMarkdownIngester creates a markdown ingester.
func NewMarkdownIngester() *MarkdownIngester {
	return &MarkdownIngester{}
}

// Extensions implements Ingester.
func (m *MarkdownIngester) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Ingest implements Ingester. Markdown produces no graph structure.
func (m *MarkdownIngester) Ingest(path string, src []byte, _ string) (*Result, error) {
	normalized := pathutil.Normalize(path)

	metadata := map[string]string{types.MetaLanguage: "markdown"}
	if title := firstHeading(string(src)); title != "" {
		metadata[types.MetaTitle] = title
	}

	return &Result{
		Contents: []types.Content{{
			ID:         normalized,
			Text:       string(src),
			Type:       types.ContentTypeMarkdown,
			SourcePath: normalized,
			Metadata:   metadata,
		}},
	}, nil
}

// firstHeading returns the text of the first ATX heading, if any.
func firstHeading(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}
