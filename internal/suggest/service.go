package suggest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tender-rag/internal/config"
	"tender-rag/internal/helper"
	"tender-rag/internal/llmservice"
	"tender-rag/internal/models"
)

// Searcher is the slice of the CRUD service used for retrieval.
type Searcher interface {
	Search(ctx context.Context, query string, filters map[string]string, limit, offset int) ([]models.SearchResult, int)
}

// Completer is the slice of the completion gateway used for generation.
type Completer interface {
	Complete(ctx context.Context, messages []llmservice.Message) (string, error)
}

// mergeTopN bounds the merged retrieval set before the acceptance gate.
const mergeTopN = 5

// searchPartitions are the document categories retrieval fans out over, at
// most three per request.
var searchPartitions = []string{"tender", "contract", "specification"}

// generationConfidences decay across successive completion calls.
var generationConfidences = []float32{0.7, 0.6}

const fallbackConfidence = 0.3

// Service answers "suggest text for this field" with a knowledge-base-first,
// generate-as-fallback policy. The result is never empty.
type Service struct {
	searcher  Searcher
	completer Completer
	cfg       *config.Config
	model     string
}

func NewService(cfg *config.Config, searcher Searcher, completer Completer) *Service {
	return &Service{
		searcher:  searcher,
		completer: completer,
		cfg:       cfg,
		model:     cfg.Snapshot().Completion.Model,
	}
}

// GetSuggestion runs the full policy: collect context, build the query,
// retrieve per category, gate, and fall back to generation then to the
// canned per-field-type text.
func (s *Service) GetSuggestion(ctx context.Context, req models.SuggestionRequest) *models.SuggestionResult {
	snap := CollectContext(req.FormContext)
	result := &models.SuggestionResult{
		ContextUsed: snap.ContextUsed(),
		GeneratedAt: time.Now().UTC(),
	}

	query := s.buildQuery(snap, req)
	hits := s.retrieve(ctx, query)

	settings := s.cfg.Snapshot().Suggest
	if len(hits) >= settings.MinResults && hits[0].Score > settings.MinScore {
		result.Suggestions = s.fromKnowledgeBase(hits, settings.TopK)
		return result
	}

	result.Suggestions = s.generate(ctx, snap, req)
	if len(result.Suggestions) == 0 {
		result.Suggestions = []models.Suggestion{{
			Text:       fallbackFor(req.FieldType),
			Source:     models.SourceFallback,
			Confidence: fallbackConfidence,
			Metadata:   map[string]string{"field_type": req.FieldType},
		}}
	}
	return result
}

// buildQuery concatenates the field-type keyword template, the caller's
// free text and the relevant context values, truncated to bound embedding
// cost.
func (s *Service) buildQuery(snap Snapshot, req models.SuggestionRequest) string {
	parts := []string{keywordsFor(req.FieldType)}
	if req.Query != "" {
		parts = append(parts, req.Query)
	}
	parts = append(parts, snap.keywords()...)

	// rune-based cut so multi-byte context values never get split
	return helper.Preview(strings.Join(parts, " "), s.cfg.Snapshot().Suggest.MaxQueryLength)
}

// retrieve fans the query out over the document-category partitions, merges
// and sorts descending by score, and keeps the top entries.
func (s *Service) retrieve(ctx context.Context, query string) []models.SearchResult {
	if s.searcher == nil {
		return nil
	}
	limit := s.cfg.Snapshot().Suggest.PartitionLimit

	var merged []models.SearchResult
	for _, category := range searchPartitions {
		hits, _ := s.searcher.Search(ctx, query, map[string]string{models.PayloadDocumentType: category}, limit, 0)
		merged = append(merged, hits...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > mergeTopN {
		merged = merged[:mergeTopN]
	}
	return merged
}

func (s *Service) fromKnowledgeBase(hits []models.SearchResult, topK int) []models.Suggestion {
	if len(hits) > topK {
		hits = hits[:topK]
	}
	suggestions := make([]models.Suggestion, 0, len(hits))
	for _, hit := range hits {
		suggestions = append(suggestions, models.Suggestion{
			Text:       hit.Content,
			Source:     models.SourceKnowledgeBase,
			Confidence: hit.Score,
			Metadata: map[string]string{
				models.PayloadDocumentID: hit.DocumentID,
				models.PayloadChunkIndex: strconv.Itoa(hit.ChunkIndex),
			},
		})
	}
	return suggestions
}

// generate calls the completion gateway up to twice, the second call
// lightly reworded for diversity. Completion failures are absorbed; the
// caller supplies the canned fallback when nothing survives.
func (s *Service) generate(ctx context.Context, snap Snapshot, req models.SuggestionRequest) []models.Suggestion {
	if s.completer == nil {
		return nil
	}

	prompt := buildPrompt(snap, req.FieldContext, req.FieldType, req.Query)
	var suggestions []models.Suggestion
	for attempt, confidence := range generationConfidences {
		messages := []llmservice.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		}
		if attempt > 0 {
			if len(suggestions) == 0 {
				break // first call failed, a reworded retry would too
			}
			messages = append(messages,
				llmservice.Message{Role: "assistant", Content: suggestions[0].Text},
				llmservice.Message{Role: "user", Content: rewordInstruction},
			)
		}

		text, err := s.completer.Complete(ctx, messages)
		if err != nil {
			log.Debug().Err(err).Str("field_type", req.FieldType).Msg("completion attempt failed")
			continue
		}
		suggestions = append(suggestions, models.Suggestion{
			Text:       text,
			Source:     models.SourceAIGenerated,
			Confidence: confidence,
			Metadata:   map[string]string{"model": s.model},
		})
	}
	return suggestions
}
