package domain

import "errors"

var (
	// ErrIndexNotReady indicates retrieval was attempted before the
	// embedding store was ensured for the corpus.
	ErrIndexNotReady = errors.New("embedding index not ready")

	// ErrEmbeddingUnavailable indicates the embedding capability failed.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrGenerationUnavailable indicates the generation capability failed
	// or timed out.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")

	// ErrNotFound indicates no cached vector exists for an ordinal.
	ErrNotFound = errors.New("no cached vector for section")

	// ErrDimensionMismatch indicates the query vector dimension does not
	// match the cached section vectors. This is a configuration error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
