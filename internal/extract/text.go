package extract

import (
	"os"

	"tender-rag/internal/models"
)

// plainTextExtractor is the last-resort strategy for text files the
// structured extractor could not handle.
type plainTextExtractor struct{}

func (e *plainTextExtractor) Name() string { return "plain_text" }

func (e *plainTextExtractor) Supports(ext string) bool {
	return ext == ".txt" || ext == ".text" || ext == ".log"
}

func (e *plainTextExtractor) Extract(filePath string) (*models.ExtractionResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return &models.ExtractionResult{
		Text:      string(data),
		PageCount: 1,
	}, nil
}
