package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tender-rag/internal/config"
	"tender-rag/internal/db"
	"tender-rag/internal/embedding"
	"tender-rag/internal/models"
	"tender-rag/internal/vectordb"
)

type fakeEmbedder struct {
	failContains string
	failAll      bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) []float32 {
	if f.failAll {
		return nil
	}
	if f.failContains != "" && strings.Contains(text, f.failContains) {
		return nil
	}
	return []float32{float32(len(text)), 1, 0.5}
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

type fakeVectors struct {
	mu          sync.Mutex
	points      map[string]vectordb.Point
	failOnBatch int // 1-based batch number to fail on, 0 = never
	batches     int
	deletes     []string
}

func newFakeVectors() *fakeVectors {
	return &fakeVectors{points: map[string]vectordb.Point{}}
}

func (f *fakeVectors) Upsert(_ context.Context, points []vectordb.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	if f.failOnBatch > 0 && f.batches >= f.failOnBatch {
		return models.ErrVectorStoreUnavailable
	}
	for _, p := range points {
		f.points[vectordb.PointID(p.DocumentID, p.Slot)] = p
	}
	return nil
}

func (f *fakeVectors) DeleteByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, documentID)
	for id, p := range f.points {
		if p.DocumentID == documentID {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeVectors) count(documentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.points {
		if p.DocumentID == documentID {
			n++
		}
	}
	return n
}

type fakeMeta struct {
	mu     sync.Mutex
	rows   map[string]db.Document
	chunks map[string][]db.DocumentChunk
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{rows: map[string]db.Document{}, chunks: map[string][]db.DocumentChunk{}}
}

func (f *fakeMeta) Get(_ context.Context, id string) (*db.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeMeta) Upsert(_ context.Context, doc *db.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[doc.ID] = *doc
	return nil
}

func (f *fakeMeta) UpdateStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.ProcessingStatus = status
		f.rows[id] = row
	}
	return nil
}

func (f *fakeMeta) ReplaceChunks(_ context.Context, documentID string, chunks []db.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks[documentID] = chunks
	return nil
}

func writeTestDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func longText() string {
	return strings.Repeat("The contracting authority will evaluate every offer against the published criteria. ", 36)
}

func newTestPipeline(t *testing.T, embedder Embedder, vectors VectorStore, meta MetadataStore) (*Pipeline, *config.Config) {
	t.Helper()
	cfg := config.Default()
	p, err := NewPipeline(cfg, embedder, vectors, meta)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p, cfg
}

func TestProcessSuccess(t *testing.T) {
	vectors := newFakeVectors()
	meta := newFakeMeta()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, vectors, meta)

	var phases []string
	result := p.Process(context.Background(), writeTestDoc(t, longText()), models.DocumentMeta{
		DocumentID:   "doc-1",
		DocumentType: "tender",
		Organization: "ministry",
	}, func(message string, fraction float64) {
		phases = append(phases, message)
		assert.GreaterOrEqual(t, fraction, 0.0)
		assert.LessOrEqual(t, fraction, 1.0)
	})

	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Greater(t, result.ChunksProcessed, 1)
	// every chunk embedded, so vectors stored equals chunks processed
	assert.Equal(t, result.ChunksProcessed, result.VectorsStored)
	assert.Equal(t, result.VectorsStored, vectors.count("doc-1"))
	assert.NotEmpty(t, phases)
	assert.Equal(t, "done", phases[len(phases)-1])

	row := meta.rows["doc-1"]
	assert.Equal(t, models.StatusSuccess, row.ProcessingStatus)
	assert.Equal(t, result.ChunksProcessed, row.ChunksCount)
	assert.Equal(t, "structured", row.ExtractionMethod)
	assert.Equal(t, "fake-embed", row.EmbeddingModel)
	assert.Len(t, meta.chunks["doc-1"], result.VectorsStored)

	for _, point := range vectors.points {
		assert.Equal(t, "doc-1", point.Payload[models.PayloadDocumentID])
		assert.Equal(t, "tender", point.Payload[models.PayloadDocumentType])
		assert.Equal(t, "ministry", point.Payload[models.PayloadOrganization])
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	meta := newFakeMeta()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, newFakeVectors(), meta)

	path := filepath.Join(t.TempDir(), "doc.exe")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	result := p.Process(context.Background(), path, models.DocumentMeta{DocumentID: "doc-x"}, nil)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "unsupported")
	assert.Equal(t, models.StatusFailed, meta.rows["doc-x"].ProcessingStatus)
}

func TestProcessPartialEmbeddingFailures(t *testing.T) {
	vectors := newFakeVectors()
	// the marker sits at the head of the text, so only the first chunk
	// carries it
	text := "UNEMBEDDABLE marker sentence opens the document. " + longText()
	p, _ := newTestPipeline(t, &fakeEmbedder{failContains: "UNEMBEDDABLE"}, vectors, newFakeMeta())

	result := p.Process(context.Background(), writeTestDoc(t, text), models.DocumentMeta{DocumentID: "doc-2"}, nil)

	require.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, result.ChunksProcessed-1, result.VectorsStored,
		"failed chunk dropped and counted, not fatal")
	assert.Equal(t, result.VectorsStored, vectors.count("doc-2"))
}

func TestProcessAllEmbeddingsFail(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEmbedder{failAll: true}, newFakeVectors(), newFakeMeta())

	result := p.Process(context.Background(), writeTestDoc(t, longText()), models.DocumentMeta{DocumentID: "doc-3"}, nil)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Greater(t, result.ChunksProcessed, 0)
	assert.Zero(t, result.VectorsStored)
}

func TestProcessStoreFailureKeepsCommittedCount(t *testing.T) {
	vectors := newFakeVectors()
	vectors.failOnBatch = 2
	cfg := config.Default()
	cfg.Reconfigure(func(c *config.Config) { c.RAG.StoreBatchSize = 2 })
	p, err := NewPipeline(cfg, &fakeEmbedder{}, vectors, newFakeMeta())
	require.NoError(t, err)
	defer p.Release()

	result := p.Process(context.Background(), writeTestDoc(t, longText()), models.DocumentMeta{DocumentID: "doc-4"}, nil)
	require.Equal(t, models.StatusFailed, result.Status)
	assert.Greater(t, result.ChunksProcessed, 2)
	assert.Equal(t, 2, result.VectorsStored, "only the batch committed before the failure counts")
}

func TestProcessForceReplacesPoints(t *testing.T) {
	vectors := newFakeVectors()
	meta := newFakeMeta()
	p, _ := newTestPipeline(t, &fakeEmbedder{}, vectors, meta)
	path := writeTestDoc(t, longText())

	first := p.Process(context.Background(), path, models.DocumentMeta{DocumentID: "doc-5"}, nil)
	require.Equal(t, models.StatusSuccess, first.Status)

	// same id without force is refused
	refused := p.Process(context.Background(), path, models.DocumentMeta{DocumentID: "doc-5"}, nil)
	assert.Equal(t, models.StatusFailed, refused.Status)
	assert.Contains(t, refused.Error, "force")

	second := p.Process(context.Background(), path, models.DocumentMeta{DocumentID: "doc-5", Force: true}, nil)
	require.Equal(t, models.StatusSuccess, second.Status)
	assert.Contains(t, vectors.deletes, "doc-5")
	// idempotent replace: the latest chunk count, never the sum of runs
	assert.Equal(t, second.VectorsStored, vectors.count("doc-5"))
}

func TestProcessCancelledBetweenPhases(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEmbedder{}, newFakeVectors(), newFakeMeta())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := p.Process(ctx, writeTestDoc(t, longText()), models.DocumentMeta{DocumentID: "doc-6"}, nil)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "cancelled")
}

func TestProcessGeneratesDocumentID(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeEmbedder{}, newFakeVectors(), newFakeMeta())

	result := p.Process(context.Background(), writeTestDoc(t, longText()), models.DocumentMeta{}, nil)
	require.Equal(t, models.StatusSuccess, result.Status)
	assert.NotEmpty(t, result.DocumentID)
}

func TestProcessMissingEmbedder(t *testing.T) {
	p, _ := newTestPipeline(t, nil, newFakeVectors(), newFakeMeta())

	result := p.Process(context.Background(), writeTestDoc(t, longText()), models.DocumentMeta{DocumentID: "doc-7"}, nil)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "embedding service unavailable")
}

func TestProcessTypedNilGateway(t *testing.T) {
	// the cmd wiring hands the pipeline a *embedding.Gateway that may be
	// nil when no model is configured; the interface then compares non-nil
	var gw *embedding.Gateway
	p, _ := newTestPipeline(t, gw, newFakeVectors(), newFakeMeta())

	result := p.Process(context.Background(), writeTestDoc(t, longText()), models.DocumentMeta{DocumentID: "doc-8"}, nil)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.Error, "embedding service unavailable")
}
