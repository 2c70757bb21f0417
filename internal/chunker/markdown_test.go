package chunker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/askdoc/internal/chunker"
)

func TestMarkdownToTextStripsFormatting(t *testing.T) {
	md := "# Heading\n\nSome **bold** and *italic* text with a [link](https://example.com).\n"
	out := chunker.MarkdownToText(md)
	require.Contains(t, out, "Heading")
	require.Contains(t, out, "Some bold and italic text with a link.")
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "**")
	require.NotContains(t, out, "https://example.com")
}

func TestMarkdownToTextKeepsCodeBlocks(t *testing.T) {
	md := "Intro paragraph.\n\n```\nfunc main() {}\n```\n"
	out := chunker.MarkdownToText(md)
	require.Contains(t, out, "Intro paragraph.")
	require.Contains(t, out, "func main() {}")
}

func TestMarkdownToTextJoinsBlocks(t *testing.T) {
	md := "First block.\n\nSecond block.\n"
	out := chunker.MarkdownToText(md)
	require.Equal(t, "First block.\n\nSecond block.", out)
}
