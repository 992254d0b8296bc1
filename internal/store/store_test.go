package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach/internal/corpus"
	"coach/internal/domain"
)

// mockEmbedder counts calls and can be told to fail at a given section text.
type mockEmbedder struct {
	dim      int
	embeds   int
	failOn   string
	prepared bool
}

func (m *mockEmbedder) Name() string { return "mock" }

func (m *mockEmbedder) Prepare(_ context.Context, texts []string) error {
	m.prepared = true
	return nil
}

func (m *mockEmbedder) Dimension() int { return m.dim }

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if m.failOn != "" && text == m.failOn {
		return nil, errors.New("backend down")
	}
	m.embeds++
	vec := make([]float64, m.dim)
	for i := range vec {
		vec[i] = float64(len(text)%7) + float64(i)
	}
	return vec, nil
}

func testCorpus(t *testing.T, n int) domain.Corpus {
	t.Helper()
	raw := ""
	for i := 0; i < n; i++ {
		raw += fmt.Sprintf("# Section %d\n\nbody text for section %d\n\n", i, i)
	}
	c := corpus.NewIndexer(nil).Parse(raw)
	require.Len(t, c, n)
	return c
}

func TestEnsureIdempotent(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{dim: 4}
	st := New(emb, nil)
	corp := testCorpus(t, 5)

	require.NoError(t, st.Ensure(ctx, corp))
	assert.True(t, emb.prepared)
	assert.Equal(t, 5, st.Recomputes())

	// Unchanged corpus: no recomputation on the second pass.
	require.NoError(t, st.Ensure(ctx, corp))
	assert.Equal(t, 5, st.Recomputes())

	for _, sec := range corp {
		vec, err := st.VectorFor(sec.Ordinal)
		require.NoError(t, err)
		assert.Len(t, vec, 4)
		assert.True(t, st.Valid(sec))
	}
}

func TestEnsureEmptyCorpus(t *testing.T) {
	emb := &mockEmbedder{dim: 4}
	st := New(emb, nil)

	require.NoError(t, st.Ensure(context.Background(), nil))
	assert.False(t, emb.prepared)
	assert.Zero(t, st.Recomputes())
}

func TestEnsureRecomputesStaleEntry(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{dim: 4}
	st := New(emb, nil)
	corp := testCorpus(t, 3)

	require.NoError(t, st.Ensure(ctx, corp))
	require.Equal(t, 3, st.Recomputes())

	// Edit one section's body in place; its hash no longer matches.
	edited := corpus.NewIndexer(nil).Parse(
		"# Section 0\n\nbody text for section 0\n\n" +
			"# Section 1\n\nrewritten body\n\n" +
			"# Section 2\n\nbody text for section 2\n\n")
	require.Len(t, edited, 3)
	assert.False(t, st.Valid(edited[1]))
	assert.True(t, st.Valid(edited[0]))

	require.NoError(t, st.Ensure(ctx, edited))
	assert.Equal(t, 4, st.Recomputes())
	assert.True(t, st.Valid(edited[1]))
}

func TestEnsurePartialProgressRetained(t *testing.T) {
	ctx := context.Background()
	corp := testCorpus(t, 10)
	emb := &mockEmbedder{dim: 4, failOn: corp[7].Text()}
	st := New(emb, nil)

	err := st.Ensure(ctx, corp)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

	// Sections before the failure keep their vectors.
	for _, sec := range corp[:7] {
		assert.True(t, st.Valid(sec), "section %d should survive the failure", sec.Ordinal)
	}
	assert.False(t, st.Valid(corp[7]))
	require.Equal(t, 7, st.Recomputes())

	// After the backend recovers, only the remainder is computed.
	emb.failOn = ""
	require.NoError(t, st.Ensure(ctx, corp))
	assert.Equal(t, 10, st.Recomputes())
	for _, sec := range corp {
		assert.True(t, st.Valid(sec))
	}
}

func TestVectorForUnknownOrdinal(t *testing.T) {
	st := New(&mockEmbedder{dim: 4}, nil)

	_, err := st.VectorFor(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	emb := &mockEmbedder{dim: 4}
	st := New(emb, nil)
	corp := testCorpus(t, 2)

	require.NoError(t, st.Ensure(ctx, corp))
	require.True(t, st.Valid(corp[0]))

	// The embedder now reports a different dimension, as after a model
	// change; cached vectors must be treated as stale.
	emb.dim = 8
	assert.False(t, st.Valid(corp[0]))

	require.NoError(t, st.Ensure(ctx, corp))
	assert.Equal(t, 4, st.Recomputes())
	assert.True(t, st.Valid(corp[0]))
}
