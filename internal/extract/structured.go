package extract

import (
	"os"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"tender-rag/internal/models"
)

// structuredExtractor parses markup-bearing text through the goldmark AST
// and emits normalized plain text plus heading/table/figure counts. It is
// the first strategy in the chain; binary or non-UTF-8 input falls through
// to the format-specific extractors.
type structuredExtractor struct{}

func (e *structuredExtractor) Name() string { return "structured" }

func (e *structuredExtractor) Supports(ext string) bool {
	switch ext {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

func (e *structuredExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(src) {
		return nil, nil // not text, let a later strategy try
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var buf strings.Builder
	res := &models.ExtractionResult{PageCount: 1}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Heading:
			// markdown has no pagination; top-level headings stand in
			if v.Level == 1 && res.TableCount+res.FigureCount+buf.Len() > 0 {
				res.PageCount++
			}
		case *ast.Image:
			res.FigureCount++
		case *extast.Table:
			res.TableCount++
		case *ast.Text:
			buf.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeLines(&buf, v.Lines(), src)
		case *ast.CodeBlock:
			writeLines(&buf, v.Lines(), src)
		}
		return ast.WalkContinue, nil
	})

	res.Text = buf.String()
	return res, nil
}

func writeLines(buf *strings.Builder, lines *text.Segments, src []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
}
