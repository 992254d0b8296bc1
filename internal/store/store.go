package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"coach/internal/domain"
)

// Store caches one embedding vector per corpus section, keyed by ordinal.
// An entry is valid only while its source hash matches the section's current
// content hash; stale entries are recomputed, never patched.
//
// Ensure is the only mutator. Entries are replaced atomically per ordinal, so
// the store may be shared read-mostly across concurrent sessions.
type Store struct {
	mu         sync.RWMutex
	embedder   domain.Embedder
	entries    map[int]entry
	recomputes int
	logger     *slog.Logger
}

type entry struct {
	vector     []float64
	sourceHash string
}

// New creates an empty store backed by the given embedder.
// A nil logger uses slog.Default().
func New(embedder domain.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		embedder: embedder,
		entries:  make(map[int]entry),
		logger:   logger,
	}
}

// Embedder returns the embedding capability backing this store. Queries must
// be embedded with the same capability so dimensions match.
func (s *Store) Embedder() domain.Embedder { return s.embedder }

// Ensure computes or refreshes cached vectors for every section whose entry
// is missing or stale. Already-valid entries are left untouched. On failure
// partial progress is retained, so a retry recomputes only the remaining
// stale entries.
func (s *Store) Ensure(ctx context.Context, corpus domain.Corpus) error {
	if len(corpus) == 0 {
		return nil
	}

	texts := make([]string, len(corpus))
	for i, sec := range corpus {
		texts[i] = sec.Text()
	}
	if err := s.embedder.Prepare(ctx, texts); err != nil {
		return fmt.Errorf("%w: preparing embedder %s: %v", domain.ErrEmbeddingUnavailable, s.embedder.Name(), err)
	}

	for _, sec := range corpus {
		if s.Valid(sec) {
			continue
		}
		vec, err := s.embedder.Embed(ctx, sec.Text())
		if err != nil {
			return fmt.Errorf("%w: embedding section %q: %v", domain.ErrEmbeddingUnavailable, sec.Title, err)
		}
		s.mu.Lock()
		s.entries[sec.Ordinal] = entry{vector: vec, sourceHash: sec.ContentHash}
		s.recomputes++
		s.mu.Unlock()
		s.logger.Debug("embedded section", "ordinal", sec.Ordinal, "title", sec.Title, "dim", len(vec))
	}
	return nil
}

// Valid reports whether the cached entry for the section exists, matches its
// current content hash, and matches the embedder's dimension (when known).
func (s *Store) Valid(sec domain.Section) bool {
	s.mu.RLock()
	e, ok := s.entries[sec.Ordinal]
	s.mu.RUnlock()
	if !ok || e.sourceHash != sec.ContentHash {
		return false
	}
	if dim := s.embedder.Dimension(); dim > 0 && len(e.vector) != dim {
		return false
	}
	return true
}

// VectorFor returns the cached vector for the given ordinal.
func (s *Store) VectorFor(ordinal int) ([]float64, error) {
	s.mu.RLock()
	e, ok := s.entries[ordinal]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: ordinal %d", domain.ErrNotFound, ordinal)
	}
	return e.vector, nil
}

// Recomputes returns the number of embedding computations performed so far.
// Calling Ensure twice on an unchanged corpus leaves this counter unchanged
// the second time.
func (s *Store) Recomputes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recomputes
}
