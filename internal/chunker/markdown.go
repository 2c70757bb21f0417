package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownToText extracts the plain text of a markdown document, block by
// block, so markdown sources can go through the sentence splitter without
// formatting noise. Fenced code blocks are carried verbatim.
func MarkdownToText(markdown string) string {
	md := goldmark.New()
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(source))
			}
			if block := strings.TrimSpace(code.String()); block != "" {
				blocks = append(blocks, block)
			}
		default:
			if block := extractText(node, source); block != "" {
				blocks = append(blocks, block)
			}
		}
	}
	return strings.Join(blocks, "\n\n")
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).SoftLineBreak() || node.(*ast.Text).HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
