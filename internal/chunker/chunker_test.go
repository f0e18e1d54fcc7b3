package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPlainDocument(t *testing.T) {
	// ~3,000 characters of regular sentences with chunk_size=1000 and
	// chunk_overlap=200 must land on 3-4 chunks of at most 1,200
	// characters, consecutive chunks sharing overlap.
	sentence := "The quick brown fox jumps over the lazy dog near the river bank. "
	text := strings.Repeat(sentence, 46) // ~3,036 chars

	c := New(1000, 200)
	chunks := c.Chunk(text)

	require.GreaterOrEqual(t, len(chunks), 3)
	require.LessOrEqual(t, len(chunks), 4)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Content), 1200)
		assert.Equal(t, i, chunk.Index)
		assert.NotEmpty(t, strings.TrimSpace(chunk.Content))
	}
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1].Content
		if len(tail) > 80 {
			tail = tail[len(tail)-80:]
		}
		assert.Contains(t, chunks[i].Content, strings.TrimSpace(tail),
			"consecutive chunks must share overlap")
	}
}

func TestChunkShortText(t *testing.T) {
	c := New(1000, 200)
	chunks := c.Chunk("One short paragraph.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "One short paragraph.", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkEmptyText(t *testing.T) {
	c := New(1000, 200)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n  "))
}

func TestWindowFallbackSnapsToSentenceBoundary(t *testing.T) {
	c := New(100, 20)
	c.useRecursive = false

	// Sentence end inside the last 20% of the 100-char window.
	first := strings.Repeat("a", 85) + ". "
	text := first + strings.Repeat("b", 200)
	chunks := c.Chunk(text)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, strings.Repeat("a", 85)+".", chunks[0].Content,
		"cut must snap to the sentence boundary")
}

func TestWindowFallbackHardCut(t *testing.T) {
	c := New(100, 20)
	c.useRecursive = false

	// No sentence boundary anywhere: every cut is a hard cut.
	text := strings.Repeat("x", 350)
	chunks := c.Chunk(text)

	require.Greater(t, len(chunks), 2)
	assert.Equal(t, 100, len(chunks[0].Content))
	for i := 1; i < len(chunks); i++ {
		// 20 characters re-applied from the previous tail
		assert.Equal(t, chunks[i-1].Content[len(chunks[i-1].Content)-20:], chunks[i].Content[:20])
	}
}

func TestNewClampsOverlap(t *testing.T) {
	c := New(100, 100)
	assert.Equal(t, 50, c.chunkOverlap)

	c = New(0, -1)
	assert.Equal(t, 1000, c.chunkSize)
	assert.Equal(t, 0, c.chunkOverlap)
}
