package chunker

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"tender-rag/internal/models"
)

// Chunker splits extracted text into overlapping, boundary-aware spans.
// It consumes the whole text eagerly and is not restartable.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	useRecursive bool
}

// Separators tried in priority order: paragraph, line, sentence, word,
// character.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

func New(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		useRecursive: true,
	}
}

// Chunk returns the ordered sequence of chunks for text. The recursive
// splitter is preferred; the fixed-window splitter takes over if it fails.
func (c *Chunker) Chunk(text string) []models.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	if c.useRecursive {
		splitter := textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(c.chunkSize),
			textsplitter.WithChunkOverlap(c.chunkOverlap),
			textsplitter.WithSeparators(separators),
		)
		split, err := splitter.SplitText(text)
		if err != nil {
			log.Warn().Err(err).Msg("recursive splitter failed, using fixed-window fallback")
		} else {
			parts = split
		}
	}
	if parts == nil {
		parts = c.window(text)
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			Content: part,
			Index:   len(chunks),
		})
	}
	return chunks
}

// window is the pure fixed-size splitter. Each cut snaps to the nearest
// preceding sentence boundary when one exists within the last 20% of the
// window, else it cuts hard. Overlap is re-applied from the tail of each
// chunk to the head of the next.
func (c *Chunker) window(content string) []string {
	contentLen := len(content)
	if contentLen <= c.chunkSize {
		return []string{content}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+c.chunkSize, contentLen)

		if end < contentLen {
			lookBack := min(c.chunkSize/5, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if isSentenceBoundary(content, i) {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(content[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == contentLen {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

func isSentenceBoundary(content string, i int) bool {
	switch content[i] {
	case '.', '!', '?':
		// boundary only when followed by whitespace or end of text
		return i+1 >= len(content) || content[i+1] == ' ' || content[i+1] == '\n'
	case '\n':
		return true
	}
	return false
}
