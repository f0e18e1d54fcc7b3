package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"tender-rag/internal/models"
)

// Strategy is one extraction capability. Strategies are tried in priority
// order; the first one returning non-empty text wins.
type Strategy interface {
	Name() string
	Supports(ext string) bool
	Extract(filePath string) (*models.ExtractionResult, error)
}

// Chain tries a structured, format-agnostic extractor before the
// format-specific fallbacks. New formats add a Strategy, not a branch.
type Chain struct {
	strategies    []Strategy
	minTextLength int
}

func NewChain(minTextLength int) *Chain {
	return &Chain{
		strategies: []Strategy{
			&structuredExtractor{},
			&pdfExtractor{},
			&docxExtractor{},
			&pptxExtractor{},
			&htmlExtractor{},
			&sheetExtractor{},
			&plainTextExtractor{},
		},
		minTextLength: minTextLength,
	}
}

func (c *Chain) Extract(filePath string) (*models.ExtractionResult, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	matched := false
	var lastErr error
	for _, s := range c.strategies {
		if !s.Supports(ext) {
			continue
		}
		matched = true
		res, err := s.Extract(filePath)
		if err != nil {
			log.Debug().Err(err).Str("strategy", s.Name()).Str("file", filePath).Msg("extractor strategy failed, trying next")
			lastErr = err
			continue
		}
		if res == nil || strings.TrimSpace(res.Text) == "" {
			continue
		}
		res.Text = normalizeWhitespace(res.Text)
		if len(res.Text) < c.minTextLength {
			return nil, fmt.Errorf("%w: extracted %d characters from %s", models.ErrExtractionFailed, len(res.Text), filePath)
		}
		res.ExtractionMethod = s.Name()
		return res, nil
	}

	if !matched {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, ext)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtractionFailed, lastErr)
	}
	return nil, fmt.Errorf("%w: no content in %s", models.ErrExtractionFailed, filePath)
}

// normalizeWhitespace collapses runs of blank lines and trims trailing
// spaces so chunk boundaries land on real text.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
