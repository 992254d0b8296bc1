// Package retrieval ranks corpus sections against a query by cosine
// similarity over cached embeddings. The retriever holds no state; it is a
// pure function over the query, the store snapshot, and the corpus.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"coach/internal/domain"
	"coach/internal/store"
)

// Retrieve embeds the query and returns the top-k sections ordered by
// descending similarity, ties broken by ascending ordinal.
//
// k is clamped to [0, len(corpus)]; k <= 0 yields an empty result. Every
// section must have a valid cached vector, otherwise ErrIndexNotReady is
// returned: sections are never silently ranked against missing vectors.
func Retrieve(ctx context.Context, query string, k int, st *store.Store, corpus domain.Corpus) (domain.Result, error) {
	if len(corpus) == 0 {
		return domain.Result{}, nil
	}
	for _, sec := range corpus {
		if !st.Valid(sec) {
			return nil, fmt.Errorf("%w: section %d %q has no valid cached vector; run Ensure first",
				domain.ErrIndexNotReady, sec.Ordinal, sec.Title)
		}
	}

	if k < 0 {
		k = 0
	}
	if k > len(corpus) {
		k = len(corpus)
	}
	if k == 0 {
		return domain.Result{}, nil
	}

	qvec, err := st.Embedder().Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", domain.ErrEmbeddingUnavailable, err)
	}

	scored := make(domain.Result, 0, len(corpus))
	for _, sec := range corpus {
		vec, err := st.VectorFor(sec.Ordinal)
		if err != nil {
			return nil, err
		}
		if len(vec) != len(qvec) {
			return nil, fmt.Errorf("%w: query dim %d, section %d dim %d",
				domain.ErrDimensionMismatch, len(qvec), sec.Ordinal, len(vec))
		}
		scored = append(scored, domain.ScoredSection{Section: sec, Score: cosineSimilarity(qvec, vec)})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Section.Ordinal < scored[j].Section.Ordinal
	})

	return scored[:k], nil
}

// cosineSimilarity returns the normalized dot product of a and b in [-1, 1].
// A zero-norm operand yields 0.
func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
