package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeatlas/pkg/types"
)

func TestNew_Defaults(t *testing.T) {
	c := New(0, 0)
	assert.Equal(t, DefaultTargetSize, c.targetSize)
	assert.Equal(t, DefaultOverlap, c.overlap)
}

func TestNew_OverlapClamp(t *testing.T) {
	c := New(100, 500)
	assert.Less(t, c.overlap, c.targetSize)
}

func TestSplit_WhitespaceOnly(t *testing.T) {
	c := New(0, 0)
	assert.Empty(t, c.Split("", types.ContentTypeCode))
	assert.Empty(t, c.Split("   \n\t\n  ", types.ContentTypePlainText))
}

func TestSplit_NoEmptyChunks(t *testing.T) {
	c := New(50, 10)
	text := strings.Repeat("para one\n\n", 20)
	for _, chunk := range c.Split(text, types.ContentTypePlainText) {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}

func TestSplitCode_SmallInputSingleChunk(t *testing.T) {
	c := New(0, 0)
	src := "func main() {\n\tprintln(\"hi\")\n}\n"
	chunks := c.Split(src, types.ContentTypeCode)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "func main()")
}

func TestSplitCode_NeverCutsInsideBraces(t *testing.T) {
	// One function body far larger than the target; depth never returns to
	// zero mid-body, so the whole block must land in one chunk.
	var sb strings.Builder
	sb.WriteString("func big() {\n")
	for i := 0; i < 100; i++ {
		sb.WriteString(fmt.Sprintf("\tx%d := compute(%d) // padding padding padding\n", i, i))
	}
	sb.WriteString("}\n")

	c := New(200, 20)
	chunks := c.Split(sb.String(), types.ContentTypeCode)

	for _, chunk := range chunks {
		if strings.Contains(chunk, "func big()") {
			assert.Contains(t, chunk, "x99 :=", "block was split inside open braces")
		}
	}
}

func TestSplitCode_CutsAtDepthZero(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString(fmt.Sprintf("func f%d() {\n\treturn\n}\n\n", i))
	}

	// overlap of a single character carries no whole line, so every chunk
	// should be brace-balanced when cuts only happen at depth zero
	c := New(300, 1)
	chunks := c.Split(sb.String(), types.ContentTypeCode)
	require.Greater(t, len(chunks), 1)

	// every chunk is brace-balanced
	for _, chunk := range chunks {
		assert.Equal(t, 0, strings.Count(chunk, "{")-strings.Count(chunk, "}"))
	}
}

func TestSplitCode_LineOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString(fmt.Sprintf("var value%02d = %d\n", i, i))
	}

	c := New(200, 40)
	chunks := c.Split(sb.String(), types.ContentTypeCode)
	require.Greater(t, len(chunks), 1)

	// the second chunk starts with lines that also ended the first
	lastLines := strings.Split(strings.TrimRight(chunks[0], "\n"), "\n")
	assert.Contains(t, chunks[1], lastLines[len(lastLines)-1])
}

func TestSplitMarkdown_HeaderSections(t *testing.T) {
	md := "# Title\n\nintro text\n\n## Section A\n\nbody a\n\n## Section B\n\nbody b\n"
	c := New(0, 0)
	chunks := c.Split(md, types.ContentTypeMarkdown)
	require.Len(t, chunks, 3)
	assert.True(t, strings.HasPrefix(chunks[0], "# Title"))
	assert.True(t, strings.HasPrefix(chunks[1], "## Section A"))
	assert.True(t, strings.HasPrefix(chunks[2], "## Section B"))
}

func TestSplitMarkdown_OversizeSectionParagraphSplit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Big\n\n")
	for i := 0; i < 30; i++ {
		sb.WriteString(strings.Repeat("lorem ipsum ", 5))
		sb.WriteString("\n\n")
	}

	c := New(300, 30)
	chunks := c.Split(sb.String(), types.ContentTypeMarkdown)
	assert.Greater(t, len(chunks), 1)
}

func TestSplitMarkdown_TextBeforeFirstHeader(t *testing.T) {
	md := "preamble line\n\n# Header\n\nbody\n"
	c := New(0, 0)
	chunks := c.Split(md, types.ContentTypeMarkdown)
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "preamble")
}

func TestSplitPlainText_ParagraphAccumulation(t *testing.T) {
	text := "first paragraph.\n\nsecond paragraph.\n\nthird paragraph."
	c := New(0, 0)
	chunks := c.Split(text, types.ContentTypePlainText)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "third paragraph.")
}

func TestSplitPlainText_CharOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString(fmt.Sprintf("paragraph %02d with some filler words here.\n\n", i))
	}

	c := New(150, 30)
	chunks := c.Split(sb.String(), types.ContentTypePlainText)
	require.Greater(t, len(chunks), 1)

	tail := chunks[0][len(chunks[0])-30:]
	assert.True(t, strings.HasPrefix(chunks[1], tail))
}

func TestSplit_DocumentationUsesMarkdownRules(t *testing.T) {
	md := "# API\n\ntext\n\n# Usage\n\nmore text\n"
	c := New(0, 0)
	chunks := c.Split(md, types.ContentTypeDocumentation)
	assert.Len(t, chunks, 2)
}
