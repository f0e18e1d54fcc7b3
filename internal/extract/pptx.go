package extract

import (
	"archive/zip"
	"io"
	"strings"

	"tender-rag/internal/models"
)

// pptxExtractor reads the slide XML parts straight out of the pptx zip
// container, one text block per slide. Slides stand in for pages.
type pptxExtractor struct{}

func (e *pptxExtractor) Name() string { return "pptx" }

func (e *pptxExtractor) Supports(ext string) bool { return ext == ".pptx" }

func (e *pptxExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	res := &models.ExtractionResult{}
	var text strings.Builder
	for _, file := range r.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") || !strings.HasSuffix(file.Name, ".xml") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		res.PageCount++
		content := string(data)
		res.TableCount += strings.Count(content, "<a:tbl>")
		res.FigureCount += strings.Count(content, "<p:pic>")

		slideText := extractXMLText(content, "<a:t")
		if strings.TrimSpace(slideText) != "" {
			text.WriteString(slideText)
			text.WriteString("\n\n")
		}
	}

	res.Text = text.String()
	return res, nil
}
