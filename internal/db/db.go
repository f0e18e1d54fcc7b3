package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"tender-rag/internal/config"
	"tender-rag/internal/models"
)

// Document is the single metadata row per ingested file.
type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID               string    `bun:"id,pk"`
	OriginalFilename string    `bun:"original_filename,notnull"`
	DocumentType     string    `bun:"document_type"`
	Organization     string    `bun:"organization"`
	FileFormat       string    `bun:"file_format"`
	FileSize         int64     `bun:"file_size"`
	ChunksCount      int       `bun:"chunks_count"`
	VectorsCount     int       `bun:"vectors_count"`
	ExtractionMethod string    `bun:"extraction_method"`
	EmbeddingModel   string    `bun:"embedding_model"`
	ProcessingStatus string    `bun:"processing_status,notnull"`
	ProcessingTime   float64   `bun:"processing_time"`
	ErrorMessage     string    `bun:"error_message"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// DocumentChunk is the optional child row per stored point.
type DocumentChunk struct {
	bun.BaseModel `bun:"table:document_chunks,alias:dc"`

	ID         int64     `bun:"id,pk,autoincrement"`
	DocumentID string    `bun:"document_id,notnull"`
	ChunkIndex int       `bun:"chunk_index,notnull"`
	PointID    string    `bun:"point_id,notnull"`
	Preview    string    `bun:"preview"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Store wraps the relational metadata store.
type Store struct {
	db *bun.DB
}

func Connect(cfg config.DatabaseConfig) (*Store, error) {
	dsn := cfg.URL + "?sslmode=disable"
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password)))
	bundb := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		bundb.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: bundb}, nil
}

// NewFromBun wraps an existing bun handle. Used by tests.
func NewFromBun(bundb *bun.DB) *Store { return &Store{db: bundb} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	if _, err := s.db.NewCreateTable().Model((*DocumentChunk)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	return nil
}

// EnsureIndexes creates the keyword indexes used by search filters. Safe to
// call repeatedly.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, col := range []string{"document_type", "organization", "processing_status"} {
		_, err := s.db.NewCreateIndex().
			Model((*Document)(nil)).
			Index("idx_documents_" + col).
			Column(col).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: index on %s: %v", models.ErrMetadataStore, col, err)
		}
	}
	return nil
}

// Upsert inserts the row or replaces an existing one with the same id.
func (s *Store) Upsert(ctx context.Context, doc *Document) error {
	doc.UpdatedAt = time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	_, err := s.db.NewInsert().
		Model(doc).
		On("CONFLICT (id) DO UPDATE").
		Set("original_filename = EXCLUDED.original_filename").
		Set("document_type = EXCLUDED.document_type").
		Set("organization = EXCLUDED.organization").
		Set("file_format = EXCLUDED.file_format").
		Set("file_size = EXCLUDED.file_size").
		Set("chunks_count = EXCLUDED.chunks_count").
		Set("vectors_count = EXCLUDED.vectors_count").
		Set("extraction_method = EXCLUDED.extraction_method").
		Set("embedding_model = EXCLUDED.embedding_model").
		Set("processing_status = EXCLUDED.processing_status").
		Set("processing_time = EXCLUDED.processing_time").
		Set("error_message = EXCLUDED.error_message").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	return nil
}

// Get returns the document row, or nil when no row exists.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	doc := new(Document)
	err := s.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	return doc, nil
}

// UpdateFields applies the given column updates; the caller has already
// allow-listed the keys. Returns whether a row was touched.
func (s *Store) UpdateFields(ctx context.Context, id string, updates map[string]string) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	q := s.db.NewUpdate().Model((*Document)(nil)).Where("id = ?", id)
	for col, val := range updates {
		q = q.Set("? = ?", bun.Ident(col), val)
	}
	q = q.Set("updated_at = ?", time.Now().UTC())

	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateStatus is the best-effort phase-boundary status write.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := s.db.NewUpdate().
		Model((*Document)(nil)).
		Set("processing_status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	return nil
}

// Delete removes the document row and its chunk children. Returns whether
// the row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := s.db.NewDelete().Model((*DocumentChunk)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	res, err := s.db.NewDelete().Model((*Document)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ReplaceChunks swaps the chunk child rows for a document.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []DocumentChunk) error {
	if _, err := s.db.NewDelete().Model((*DocumentChunk)(nil)).Where("document_id = ?", documentID).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	if len(chunks) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&chunks).Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	return nil
}

// Stats aggregates the metadata half of the collection statistics.
func (s *Store) Stats(ctx context.Context) (*models.CollectionStats, error) {
	stats := &models.CollectionStats{}

	count, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	stats.DocumentsTotal = count

	if err := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("COALESCE(SUM(chunks_count), 0)").
		Scan(ctx, &stats.ChunksTotal); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}

	if err := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("DISTINCT organization").
		Where("organization <> ''").
		Scan(ctx, &stats.Organizations); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}

	if err := s.db.NewSelect().
		Model((*Document)(nil)).
		ColumnExpr("DISTINCT document_type").
		Where("document_type <> ''").
		Scan(ctx, &stats.DocumentTypes); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}

	latest := new(Document)
	err = s.db.NewSelect().Model(latest).OrderExpr("created_at DESC").Limit(1).Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", models.ErrMetadataStore, err)
	}
	if err == nil {
		stats.LatestDocument = latest.OriginalFilename
		stats.LatestAt = latest.CreatedAt
	}

	return stats, nil
}
