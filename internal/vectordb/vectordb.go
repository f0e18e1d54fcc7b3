package vectordb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"tender-rag/internal/config"
	"tender-rag/internal/models"
)

// Point is one stored vector plus its payload, one per chunk. Slot is the
// dense storage position within the document (0..stored-1); the payload
// carries the original chunk index, which may have gaps after per-chunk
// embedding failures.
type Point struct {
	DocumentID string
	Slot       int
	Embedding  []float32
	Content    string
	Payload    map[string]string
}

// Store wraps the chromem-go database behind the gateway surface the
// pipeline and CRUD service need: upsert, filtered search, per-document
// scroll, payload patch, delete and counts.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
}

func NewStore(cfg config.VectorConfig) (*Store, error) {
	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrVectorStoreUnavailable, err)
		}
	}

	s := &Store{db: db}
	if err := s.EnsureCollection(cfg.Collection); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureCollection creates or opens the collection. Embeddings are always
// supplied by the caller, so no embedding function is attached.
func (s *Store) EnsureCollection(name string) error {
	c, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrVectorStoreUnavailable, err)
	}
	s.collection = c
	return nil
}

// PointID is the stable identifier for a document's point at a storage slot.
func PointID(documentID string, slot int) string {
	return fmt.Sprintf("%s_%d", documentID, slot)
}

// Upsert writes points, overwriting any existing point with the same ID.
func (s *Store) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		docs[i] = chromem.Document{
			ID:        PointID(p.DocumentID, p.Slot),
			Content:   p.Content,
			Metadata:  p.Payload,
			Embedding: p.Embedding,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: %v", models.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Search runs a similarity query with an AND-of-equality metadata filter.
// The result limit is clamped to the collection size; an empty collection
// yields an empty result, never an error.
func (s *Store) Search(ctx context.Context, embedding []float32, where map[string]string, limit int) ([]chromem.Result, error) {
	n := s.collection.Count()
	if n == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}
	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrVectorStoreUnavailable, err)
	}
	return results, nil
}

// Scroll pages through a document's points in slot order. It returns the
// next cursor, or -1 once the backend reports no further page. Slot IDs
// are dense by construction, so the first miss ends the scroll.
func (s *Store) Scroll(ctx context.Context, documentID string, cursor, pageSize int) ([]chromem.Document, int, error) {
	if cursor < 0 || pageSize <= 0 {
		return nil, -1, nil
	}
	var page []chromem.Document
	for len(page) < pageSize {
		doc, err := s.collection.GetByID(ctx, PointID(documentID, cursor))
		if err != nil {
			return page, -1, nil
		}
		page = append(page, doc)
		cursor++
	}
	return page, cursor, nil
}

// SetPayload patches metadata fields onto an existing point, keeping its
// embedding and content.
func (s *Store) SetPayload(ctx context.Context, pointID string, fields map[string]string) error {
	doc, err := s.collection.GetByID(ctx, pointID)
	if err != nil {
		return fmt.Errorf("%w: point %s: %v", models.ErrVectorStoreUnavailable, pointID, err)
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		doc.Metadata[k] = v
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("%w: point %s: %v", models.ErrVectorStoreUnavailable, pointID, err)
	}
	return nil
}

// DeleteByDocument removes every point belonging to a document.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	err := s.collection.Delete(ctx, map[string]string{models.PayloadDocumentID: documentID}, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrVectorStoreUnavailable, err)
	}
	return nil
}

// Count reports the number of stored points.
func (s *Store) Count() int {
	return s.collection.Count()
}
