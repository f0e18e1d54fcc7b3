package models

import "time"

// Processing statuses for a document moving through the ingestion pipeline.
const (
	StatusPending    = "pending"
	StatusExtracting = "extracting"
	StatusChunking   = "chunking"
	StatusEmbedding  = "embedding"
	StatusStoring    = "storing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// Suggestion sources.
const (
	SourceKnowledgeBase = "knowledge_base"
	SourceAIGenerated   = "ai_generated"
	SourceFallback      = "fallback"
)

// Payload keys mirrored onto every stored point.
const (
	PayloadDocumentID       = "document_id"
	PayloadChunkIndex       = "chunk_index"
	PayloadTotalChunks      = "total_chunks"
	PayloadChunkText        = "chunk_text"
	PayloadDocumentType     = "document_type"
	PayloadOrganization     = "organization"
	PayloadEmbeddingModel   = "embedding_model"
	PayloadExtractionMethod = "extraction_method"
	PayloadProcessedAt      = "processed_at"
)

// Chunk is one bounded span of a document's extracted text.
type Chunk struct {
	Content string
	Index   int
}

// ExtractionResult carries the plain text plus extraction metadata.
type ExtractionResult struct {
	Text             string
	ExtractionMethod string
	PageCount        int
	TableCount       int
	FigureCount      int
}

// DocumentMeta is the caller-supplied classification for a file being ingested.
type DocumentMeta struct {
	DocumentID   string
	Filename     string
	DocumentType string
	Organization string
	// Force permits reprocessing an existing document id; prior points are
	// deleted first so the replace is idempotent.
	Force bool
}

// ProcessResult is the terminal record of one ingestion run.
type ProcessResult struct {
	Status          string
	DocumentID      string
	ChunksProcessed int
	VectorsStored   int
	Extraction      *ExtractionResult
	Error           string
	ProcessingTime  float64
}

// SearchResult is one scored hit from the knowledge base.
type SearchResult struct {
	DocumentID string
	ChunkIndex int
	Content    string
	Score      float32
	Payload    map[string]string
}

// SuggestionRequest is ephemeral and never persisted.
type SuggestionRequest struct {
	FieldContext string
	FieldType    string
	Query        string
	FormContext  map[string]any
}

// Suggestion is one proposed text for a form field.
type Suggestion struct {
	Text       string
	Source     string
	Confidence float32
	Metadata   map[string]string
}

// SuggestionResult is never empty: a deterministic fallback guarantees at
// least one entry.
type SuggestionResult struct {
	Suggestions []Suggestion
	ContextUsed map[string]string
	GeneratedAt time.Time
}

// CollectionStats merges vector-store and metadata-store views; each half
// degrades to its zero value independently when a backend is unreachable.
type CollectionStats struct {
	VectorsTotal   int
	DocumentsTotal int
	ChunksTotal    int
	Organizations  []string
	DocumentTypes  []string
	LatestDocument string
	LatestAt       time.Time
}
