package models

import "errors"

var (
	// ErrUnsupportedFormat means no extractor strategy matches the file extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed covers empty or below-threshold extracted content.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmbeddingUnavailable means the embedding service is not configured.
	// Fatal to ingestion, non-fatal to search which degrades to empty.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
	// ErrVectorStoreUnavailable is fatal to ingestion storage and degrades
	// search/stats to empty.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrMetadataStore aborts update/delete before any vector mutation.
	ErrMetadataStore = errors.New("metadata store failure")
	// ErrCompletionFailed is never surfaced to callers; the suggestion
	// service absorbs it into the canned fallback.
	ErrCompletionFailed = errors.New("completion service failure")
)
