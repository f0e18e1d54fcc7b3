package extract

import (
	"strings"

	"github.com/nguyenthenguyen/docx"

	"tender-rag/internal/models"
)

type docxExtractor struct{}

func (e *docxExtractor) Name() string { return "docx" }

func (e *docxExtractor) Supports(ext string) bool { return ext == ".docx" }

func (e *docxExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc := r.Editable()
	content := doc.GetContent()

	// GetContent returns the raw document XML; keep only run text.
	var text strings.Builder
	tables := strings.Count(content, "<w:tbl>")
	figures := strings.Count(content, "<w:drawing>")
	for _, para := range strings.Split(content, "</w:p>") {
		line := extractXMLText(para, "<w:t")
		if strings.TrimSpace(line) != "" {
			text.WriteString(line)
			text.WriteString("\n\n")
		}
	}

	return &models.ExtractionResult{
		Text:        text.String(),
		PageCount:   1,
		TableCount:  tables,
		FigureCount: figures,
	}, nil
}

// extractXMLText pulls the character data out of every occurrence of the
// given element within a fragment. Tag attributes are tolerated; a longer
// tag name sharing the prefix (w:t vs w:tbl) is not a match.
func extractXMLText(fragment, openTag string) string {
	var out strings.Builder
	rest := fragment
	for {
		start := strings.Index(rest, openTag)
		if start < 0 {
			break
		}
		rest = rest[start+len(openTag):]
		if rest != "" && rest[0] != '>' && rest[0] != ' ' && rest[0] != '/' {
			continue
		}
		gt := strings.IndexByte(rest, '>')
		if gt < 0 {
			break
		}
		if gt > 0 && rest[gt-1] == '/' {
			rest = rest[gt+1:]
			continue
		}
		rest = rest[gt+1:]
		end := strings.Index(rest, "</")
		if end < 0 {
			break
		}
		out.WriteString(rest[:end])
		rest = rest[end:]
	}
	return out.String()
}
