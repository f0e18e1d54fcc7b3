package extract

import (
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"tender-rag/internal/models"
)

type pdfExtractor struct{}

func (e *pdfExtractor) Name() string { return "pdf" }

func (e *pdfExtractor) Supports(ext string) bool { return ext == ".pdf" }

func (e *pdfExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}

	return &models.ExtractionResult{
		Text:      text.String(),
		PageCount: numPages,
	}, nil
}
