package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"tender-rag/internal/chunker"
	"tender-rag/internal/config"
	"tender-rag/internal/db"
	"tender-rag/internal/extract"
	"tender-rag/internal/helper"
	"tender-rag/internal/models"
	"tender-rag/internal/vectordb"
)

// Embedder is the slice of the embedding gateway the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	Model() string
}

// VectorStore is the slice of the vector store gateway the pipeline needs.
type VectorStore interface {
	Upsert(ctx context.Context, points []vectordb.Point) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// MetadataStore is the slice of the relational store the pipeline needs.
type MetadataStore interface {
	Get(ctx context.Context, id string) (*db.Document, error)
	Upsert(ctx context.Context, doc *db.Document) error
	UpdateStatus(ctx context.Context, id, status string) error
	ReplaceChunks(ctx context.Context, documentID string, chunks []db.DocumentChunk) error
}

// ProgressFunc is invoked at each phase boundary with a message and a
// completed fraction in [0,1]. Cancellation is cooperative through the
// context and takes effect between phases, never mid-batch.
type ProgressFunc func(message string, fraction float64)

// Pipeline runs a document through extract, chunk, embed and store, and
// persists the terminal metadata row. Failures are folded into the result
// record; Process never returns an error.
type Pipeline struct {
	chain    *extract.Chain
	splitter *chunker.Chunker
	embedder Embedder
	vectors  VectorStore
	meta     MetadataStore
	pool     *ants.Pool
	cfg      *config.Config
}

func NewPipeline(cfg *config.Config, embedder Embedder, vectors VectorStore, meta MetadataStore) (*Pipeline, error) {
	snap := cfg.Snapshot()
	pool, err := ants.NewPool(snap.RAG.EmbedWorkers)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		chain:    extract.NewChain(snap.RAG.MinTextLength),
		splitter: chunker.New(snap.RAG.ChunkSize, snap.RAG.ChunkOverlap),
		embedder: embedder,
		vectors:  vectors,
		meta:     meta,
		pool:     pool,
		cfg:      cfg,
	}, nil
}

// Release frees the embedding worker pool. The pipeline must not be used
// afterwards.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Process ingests one file. State machine per document:
// Pending -> Extracting -> Chunking -> Embedding -> Storing -> {Success, Failed}.
// A transition to Failed is permitted from any non-terminal state and
// carries the first error plus whatever partial counts exist.
func (p *Pipeline) Process(ctx context.Context, filePath string, meta models.DocumentMeta, progress ProgressFunc) *models.ProcessResult {
	start := time.Now()
	snap := p.cfg.Snapshot()

	id := meta.DocumentID
	if id == "" {
		var err error
		if id, err = helper.GenerateUUID(); err != nil {
			return &models.ProcessResult{Status: models.StatusFailed, Error: err.Error()}
		}
	}

	result := &models.ProcessResult{Status: models.StatusPending, DocumentID: id}
	report := func(message string, fraction float64) {
		if progress != nil {
			progress(message, fraction)
		}
	}

	row := &db.Document{
		ID:               id,
		OriginalFilename: meta.Filename,
		DocumentType:     meta.DocumentType,
		Organization:     meta.Organization,
		FileFormat:       strings.TrimPrefix(strings.ToLower(filepath.Ext(filePath)), "."),
		ProcessingStatus: models.StatusPending,
	}
	if row.OriginalFilename == "" {
		row.OriginalFilename = filepath.Base(filePath)
	}
	if info, err := os.Stat(filePath); err == nil {
		row.FileSize = info.Size()
	}

	fail := func(phase string, err error) *models.ProcessResult {
		log.Error().Err(err).Str("document_id", id).Str("phase", phase).Msg("ingestion failed")
		result.Status = models.StatusFailed
		result.Error = err.Error()
		result.ProcessingTime = time.Since(start).Seconds()
		p.persistFinal(ctx, row, result)
		return result
	}

	existing, err := p.meta.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("could not check for existing document")
	}
	if existing != nil {
		if !meta.Force {
			return fail("pending", fmt.Errorf("document %s already exists, reprocessing requires force", id))
		}
		// idempotent replace: clear prior points before re-running
		if err := p.vectors.DeleteByDocument(ctx, id); err != nil {
			return fail("pending", err)
		}
		if err := p.meta.ReplaceChunks(ctx, id, nil); err != nil {
			log.Warn().Err(err).Str("document_id", id).Msg("could not clear chunk rows before reprocess")
		}
	}

	if err := p.meta.Upsert(ctx, row); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("could not persist pending row")
	}

	// Extracting
	if err := cancelled(ctx); err != nil {
		return fail(models.StatusPending, err)
	}
	p.setStatus(ctx, row, models.StatusExtracting)
	report("extracting text", 0.1)

	extraction, err := p.chain.Extract(filePath)
	if err != nil {
		return fail(models.StatusExtracting, err)
	}
	result.Extraction = extraction
	row.ExtractionMethod = extraction.ExtractionMethod

	// Chunking
	if err := cancelled(ctx); err != nil {
		return fail(models.StatusExtracting, err)
	}
	p.setStatus(ctx, row, models.StatusChunking)
	report("chunking text", 0.3)

	chunks := p.splitter.Chunk(extraction.Text)
	if len(chunks) == 0 {
		return fail(models.StatusChunking, fmt.Errorf("%w: no chunks produced", models.ErrExtractionFailed))
	}
	result.ChunksProcessed = len(chunks)
	row.ChunksCount = len(chunks)

	// Embedding
	if err := cancelled(ctx); err != nil {
		return fail(models.StatusChunking, err)
	}
	// A typed-nil gateway slips past the interface nil check but reports
	// an empty model name.
	if p.embedder == nil || p.embedder.Model() == "" {
		return fail(models.StatusEmbedding, models.ErrEmbeddingUnavailable)
	}
	p.setStatus(ctx, row, models.StatusEmbedding)
	report("embedding chunks", 0.5)
	row.EmbeddingModel = p.embedder.Model()

	vectors := p.embedAll(ctx, chunks)

	points, chunkRows := p.assemble(id, row, chunks, vectors, snap.RAG.PreviewLength)
	if len(points) == 0 {
		return fail(models.StatusEmbedding, fmt.Errorf("every chunk embedding failed for %s", id))
	}
	dropped := len(chunks) - len(points)
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Str("document_id", id).Msg("chunks dropped after embedding failures")
	}

	// Storing
	if err := cancelled(ctx); err != nil {
		return fail(models.StatusEmbedding, err)
	}
	p.setStatus(ctx, row, models.StatusStoring)
	report("storing vectors", 0.8)

	for offset := 0; offset < len(points); offset += snap.RAG.StoreBatchSize {
		end := min(offset+snap.RAG.StoreBatchSize, len(points))
		if err := p.vectors.Upsert(ctx, points[offset:end]); err != nil {
			result.VectorsStored = offset // committed before the failing batch
			row.VectorsCount = offset
			return fail(models.StatusStoring, err)
		}
		result.VectorsStored = end
	}
	row.VectorsCount = result.VectorsStored

	if err := p.meta.ReplaceChunks(ctx, id, chunkRows); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("could not persist chunk rows")
	}

	result.Status = models.StatusSuccess
	result.ProcessingTime = time.Since(start).Seconds()
	p.persistFinal(ctx, row, result)
	report("done", 1.0)

	log.Info().
		Str("document_id", id).
		Int("chunks", result.ChunksProcessed).
		Int("vectors", result.VectorsStored).
		Float64("seconds", result.ProcessingTime).
		Msg("document ingested")
	return result
}

// embedAll runs the chunk embeddings through the bounded worker pool,
// writing each result back at its original index so chunk order never
// depends on completion order. Failed chunks stay nil.
func (p *Pipeline) embedAll(ctx context.Context, chunks []models.Chunk) [][]float32 {
	vectors := make([][]float32, len(chunks))
	var wg sync.WaitGroup
	for i := range chunks {
		i := i
		text := chunks[i].Content
		wg.Add(1)
		task := func() {
			defer wg.Done()
			vectors[i] = p.embedder.Embed(ctx, text)
		}
		if err := p.pool.Submit(task); err != nil {
			// pool released or overloaded: degrade to inline execution
			task()
		}
	}
	wg.Wait()
	return vectors
}

// assemble turns surviving chunks into points with dense storage slots and
// matching chunk child rows. The payload keeps the original chunk index.
func (p *Pipeline) assemble(id string, row *db.Document, chunks []models.Chunk, vectors [][]float32, previewLen int) ([]vectordb.Point, []db.DocumentChunk) {
	processedAt := time.Now().UTC().Format(time.RFC3339)
	total := strconv.Itoa(len(chunks))

	var points []vectordb.Point
	var chunkRows []db.DocumentChunk
	for i, chunk := range chunks {
		if vectors[i] == nil {
			continue
		}
		slot := len(points)
		preview := helper.Preview(chunk.Content, previewLen)
		points = append(points, vectordb.Point{
			DocumentID: id,
			Slot:       slot,
			Embedding:  vectors[i],
			Content:    preview,
			Payload: map[string]string{
				models.PayloadDocumentID:       id,
				models.PayloadChunkIndex:       strconv.Itoa(chunk.Index),
				models.PayloadTotalChunks:      total,
				models.PayloadChunkText:        preview,
				models.PayloadDocumentType:     row.DocumentType,
				models.PayloadOrganization:     row.Organization,
				models.PayloadEmbeddingModel:   row.EmbeddingModel,
				models.PayloadExtractionMethod: row.ExtractionMethod,
				models.PayloadProcessedAt:      processedAt,
			},
		})
		chunkRows = append(chunkRows, db.DocumentChunk{
			DocumentID: id,
			ChunkIndex: chunk.Index,
			PointID:    vectordb.PointID(id, slot),
			Preview:    preview,
		})
	}
	return points, chunkRows
}

func (p *Pipeline) setStatus(ctx context.Context, row *db.Document, status string) {
	row.ProcessingStatus = status
	if err := p.meta.UpdateStatus(ctx, row.ID, status); err != nil {
		log.Debug().Err(err).Str("document_id", row.ID).Str("status", status).Msg("status update skipped")
	}
}

func (p *Pipeline) persistFinal(ctx context.Context, row *db.Document, result *models.ProcessResult) {
	row.ProcessingStatus = result.Status
	row.ProcessingTime = result.ProcessingTime
	row.ErrorMessage = result.Error
	row.ChunksCount = result.ChunksProcessed
	row.VectorsCount = result.VectorsStored
	if err := p.meta.Upsert(ctx, row); err != nil {
		log.Error().Err(err).Str("document_id", row.ID).Msg("could not persist final document row")
	}
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ingestion cancelled: %w", err)
	}
	return nil
}
