package domain

import "context"

// Embedder converts free text into a numeric vector representation.
// Implementations must be deterministic and dimension-stable for their
// lifetime. Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GenerationBackend produces a single assistant reply from a system prompt,
// an assembled grounded message, and bounded recent turn history.
type GenerationBackend interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userMessage string, history []Turn) (string, error)
}
