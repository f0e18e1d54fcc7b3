package crud

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"tender-rag/internal/config"
	"tender-rag/internal/db"
	"tender-rag/internal/models"
)

// FilterAll is the sentinel filter value meaning "no restriction".
const FilterAll = "All"

const scrollPageSize = 100

// Embedder is the slice of the embedding gateway the service needs.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// VectorStore is the slice of the vector store gateway the service needs.
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, where map[string]string, limit int) ([]chromem.Result, error)
	Scroll(ctx context.Context, documentID string, cursor, pageSize int) ([]chromem.Document, int, error)
	SetPayload(ctx context.Context, pointID string, fields map[string]string) error
	DeleteByDocument(ctx context.Context, documentID string) error
	Count() int
}

// MetadataStore is the slice of the relational store the service needs.
type MetadataStore interface {
	Get(ctx context.Context, id string) (*db.Document, error)
	UpdateFields(ctx context.Context, id string, updates map[string]string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (*models.CollectionStats, error)
	EnsureIndexes(ctx context.Context) error
}

// updateAllowList restricts update_document_metadata to fields that are
// safe to mutate. The value marks whether the field is mirrored onto the
// vector payload (the eventual-consistency half of an update).
var updateAllowList = map[string]string{
	"document_type":     models.PayloadDocumentType,
	"organization":      models.PayloadOrganization,
	"original_filename": "",
}

// Service keeps the metadata row and the vector points of a document in
// step. Dual-store writes are a saga with a fixed mutation order per
// operation: metadata-then-vectors for update, vectors-then-metadata for
// delete. The interval in which the two stores disagree after a partial
// failure is a documented consistency window, never rolled back.
type Service struct {
	meta     MetadataStore
	vectors  VectorStore
	embedder Embedder
	cfg      *config.Config

	indexesOnce sync.Once
}

func NewService(cfg *config.Config, embedder Embedder, vectors VectorStore, meta MetadataStore) *Service {
	return &Service{
		meta:     meta,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
	}
}

// Search embeds the query and runs a filtered similarity search. It never
// returns an error: an unavailable embedder or vector store degrades to an
// empty result. The returned total is exact when the page is not full,
// otherwise a bounded estimate from a larger probe query.
func (s *Service) Search(ctx context.Context, query string, filters map[string]string, limit, offset int) ([]models.SearchResult, int) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var embedding []float32
	if s.embedder != nil {
		embedding = s.embedder.Embed(ctx, query)
	}
	if embedding == nil {
		log.Debug().Msg("search degraded to empty: no query embedding")
		return []models.SearchResult{}, 0
	}

	where := buildFilter(filters)
	hits, err := s.vectors.Search(ctx, embedding, where, limit+offset)
	if err != nil {
		log.Warn().Err(err).Msg("vector search failed, returning empty result")
		return []models.SearchResult{}, 0
	}
	if offset >= len(hits) {
		return []models.SearchResult{}, len(hits)
	}
	hits = hits[offset:]
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toSearchResult(hit))
	}

	total := offset + len(results)
	if len(results) == limit {
		// Full page: the backend has no cheap exact count, so re-run the
		// query with a larger probe limit and count. An estimate, bounded
		// by the probe limit.
		probe := s.cfg.Snapshot().RAG.ProbeLimit
		probed, err := s.vectors.Search(ctx, embedding, where, probe)
		if err == nil {
			total = len(probed)
		}
	}
	return results, total
}

// UpdateMetadata applies allow-listed updates to the document row first,
// then mirrors the payload-mapped fields onto every point via a paginated
// scroll. A metadata failure aborts before any vector mutation. A vector
// mirror failure after the metadata commit is logged and the call still
// reports success for the metadata half.
func (s *Service) UpdateMetadata(ctx context.Context, id string, updates map[string]string) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	payloadFields := make(map[string]string)
	for key, value := range updates {
		payloadKey, ok := updateAllowList[key]
		if !ok {
			return false, fmt.Errorf("field %q is not updatable", key)
		}
		if payloadKey != "" {
			payloadFields[payloadKey] = value
		}
	}

	ok, err := s.meta.UpdateFields(ctx, id, updates)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if len(payloadFields) == 0 {
		return true, nil
	}

	cursor := 0
	for cursor >= 0 {
		page, next, err := s.vectors.Scroll(ctx, id, cursor, scrollPageSize)
		if err != nil {
			log.Warn().Err(err).Str("document_id", id).
				Msg("payload mirror scroll failed; stores inconsistent until reprocess")
			return true, nil
		}
		for _, point := range page {
			if err := s.vectors.SetPayload(ctx, point.ID, payloadFields); err != nil {
				log.Warn().Err(err).Str("point_id", point.ID).
					Msg("payload mirror failed; stores inconsistent until reprocess")
			}
		}
		cursor = next
	}
	return true, nil
}

// Delete removes a document from both stores, points first so an
// interrupted delete never leaves orphan points behind a missing row.
// Returns true iff the document row existed and was removed; a second call
// returns false and never raises.
func (s *Service) Delete(ctx context.Context, id string) bool {
	row, err := s.meta.Get(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("delete aborted: metadata lookup failed")
		return false
	}
	if row == nil {
		return false
	}

	if err := s.vectors.DeleteByDocument(ctx, id); err != nil {
		log.Warn().Err(err).Str("document_id", id).Msg("delete aborted before metadata: vector delete failed")
		return false
	}

	existed, err := s.meta.Delete(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("document_id", id).
			Msg("document row survived a point delete; stores inconsistent until retried")
		return false
	}
	return existed
}

// BatchDelete deletes each id independently and non-transactionally,
// returning a per-id outcome map so the caller can retry only the failures.
func (s *Service) BatchDelete(ctx context.Context, ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = s.Delete(ctx, id)
	}
	return out
}

// CollectionStats merges the vector-store point count with the metadata
// aggregates. Each half degrades to zero values independently.
func (s *Service) CollectionStats(ctx context.Context) *models.CollectionStats {
	stats := &models.CollectionStats{}

	if s.vectors != nil {
		stats.VectorsTotal = s.vectors.Count()
	}

	metaStats, err := s.meta.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("metadata stats unavailable")
		return stats
	}
	stats.DocumentsTotal = metaStats.DocumentsTotal
	stats.ChunksTotal = metaStats.ChunksTotal
	stats.Organizations = metaStats.Organizations
	stats.DocumentTypes = metaStats.DocumentTypes
	stats.LatestDocument = metaStats.LatestDocument
	stats.LatestAt = metaStats.LatestAt
	return stats
}

// EnsureIndexes creates the keyword indexes used by search filters, at most
// once per service instance. Backends without index support only cost a
// logged warning; startup is never blocked. The chromem side needs no
// keyword indexes, metadata filtering is built in.
func (s *Service) EnsureIndexes(ctx context.Context) {
	s.indexesOnce.Do(func() {
		if err := s.meta.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("index creation skipped")
		}
	})
}

// buildFilter keeps only meaningful filter values: empty strings and the
// "All" sentinel place no restriction.
func buildFilter(filters map[string]string) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	where := make(map[string]string, len(filters))
	for key, value := range filters {
		if value == "" || value == FilterAll {
			continue
		}
		where[key] = value
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

func toSearchResult(hit chromem.Result) models.SearchResult {
	chunkIndex, _ := strconv.Atoi(hit.Metadata[models.PayloadChunkIndex])
	return models.SearchResult{
		DocumentID: hit.Metadata[models.PayloadDocumentID],
		ChunkIndex: chunkIndex,
		Content:    hit.Content,
		Score:      hit.Similarity,
		Payload:    hit.Metadata,
	}
}
