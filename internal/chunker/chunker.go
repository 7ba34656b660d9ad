package chunker

import (
	"strings"

	"github.com/dshills/codeatlas/pkg/types"
)

const (
	// DefaultTargetSize is the target chunk size in characters.
	DefaultTargetSize = 2000

	// DefaultOverlap is the number of characters carried from the end of
	// one chunk into the start of the next.
	DefaultOverlap = 200
)

// Chunker splits raw text into bounded, overlapping chunks along semantic
// boundaries. The boundary heuristic depends on content type: brace depth
// for code, headers then paragraphs for markdown, paragraphs for plain text.
type Chunker struct {
	targetSize int
	overlap    int
}

// New creates a Chunker. Non-positive arguments fall back to the defaults.
func New(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if overlap >= targetSize {
		overlap = targetSize / 10
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}
}

// Split divides text into ordered chunks. Whitespace-only input returns an
// empty slice - nothing to index, not an error. No returned chunk is empty.
func (c *Chunker) Split(text string, contentType types.ContentType) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	switch contentType {
	case types.ContentTypeCode:
		return c.splitCode(text)
	case types.ContentTypeMarkdown, types.ContentTypeDocumentation:
		return c.splitMarkdown(text)
	default:
		return c.splitPlainText(text)
	}
}

// splitCode accumulates lines and tracks brace depth. A cut is only allowed
// when depth has returned to zero and the accumulated size has reached the
// target, so a chunk never ends inside an open block. The next chunk is
// seeded with the trailing overlap lines of the previous one.
func (c *Chunker) splitCode(text string) []string {
	lines := strings.Split(text, "\n")

	var chunks []string
	var current []string
	currentLen := 0
	depth := 0
	fresh := true // current holds only carried overlap, nothing new

	for _, line := range lines {
		current = append(current, line)
		currentLen += len(line) + 1
		fresh = false
		depth += braceDelta(line)
		if depth < 0 {
			depth = 0
		}

		if depth == 0 && currentLen >= c.targetSize {
			chunk := strings.Join(current, "\n")
			if strings.TrimSpace(chunk) != "" {
				chunks = append(chunks, chunk)
			}
			current = overlapLines(current, c.overlap)
			currentLen = joinedLen(current)
			fresh = true
		}
	}

	if !fresh {
		if rest := strings.Join(current, "\n"); strings.TrimSpace(rest) != "" {
			chunks = append(chunks, rest)
		}
	}

	return chunks
}

// splitMarkdown first splits on header lines, then re-splits any section
// still over target size on blank-line paragraph boundaries.
func (c *Chunker) splitMarkdown(text string) []string {
	sections := splitOnHeaders(text)

	var chunks []string
	for _, section := range sections {
		if strings.TrimSpace(section) == "" {
			continue
		}
		if len(section) <= c.targetSize {
			chunks = append(chunks, section)
			continue
		}
		chunks = append(chunks, c.splitPlainText(section)...)
	}

	return chunks
}

// splitPlainText accumulates paragraphs (double-newline delimited) until the
// target size is reached, carrying character-granular overlap forward.
func (c *Chunker) splitPlainText(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var sb strings.Builder
	carried := 0 // length of overlap text currently in sb

	flush := func() {
		chunk := sb.String()
		sb.Reset()
		if strings.TrimSpace(chunk) == "" {
			carried = 0
			return
		}
		chunks = append(chunks, chunk)
		if c.overlap > 0 && len(chunk) > c.overlap {
			tail := chunk[len(chunk)-c.overlap:]
			sb.WriteString(tail)
			carried = sb.Len()
		} else {
			carried = 0
		}
	}

	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(para)
		if sb.Len() >= c.targetSize {
			flush()
		}
	}
	if sb.Len() > carried {
		flush()
	}

	return chunks
}

// splitOnHeaders splits markdown into sections, each starting at a header
// line. Text before the first header forms its own section.
func splitOnHeaders(text string) []string {
	lines := strings.Split(text, "\n")

	var sections []string
	var current []string

	for _, line := range lines {
		if isHeaderLine(line) && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	return sections
}

func isHeaderLine(line string) bool {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return false
	}
	rest := strings.TrimLeft(trimmed, "#")
	return rest == "" || strings.HasPrefix(rest, " ")
}

// braceDelta counts opening minus closing braces on a line.
func braceDelta(line string) int {
	return strings.Count(line, "{") - strings.Count(line, "}")
}

// overlapLines returns the trailing lines of prev totalling at most overlap
// characters, to seed the next chunk.
func overlapLines(prev []string, overlap int) []string {
	if overlap <= 0 || len(prev) == 0 {
		return nil
	}
	total := 0
	start := len(prev)
	for i := len(prev) - 1; i >= 0; i-- {
		total += len(prev[i]) + 1
		if total > overlap {
			break
		}
		start = i
	}
	if start == len(prev) {
		return nil
	}
	out := make([]string, len(prev)-start)
	copy(out, prev[start:])
	return out
}

func joinedLen(lines []string) int {
	n := 0
	for _, l := range lines {
		n += len(l) + 1
	}
	return n
}
