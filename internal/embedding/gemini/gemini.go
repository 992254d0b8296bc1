package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Client produces embeddings via the Gemini API.
type Client struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewClient creates a Gemini embeddings client. dim > 0 requests truncated
// output vectors of that dimensionality.
func NewClient(ctx context.Context, apiKey, model string, dim int) (*Client, error) {
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{client: client, model: model, dimension: dim}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "gemini" }

// Prepare is a no-op for remote embedding.
func (c *Client) Prepare(ctx context.Context, corpus []string) error { return nil }

// Dimension returns the configured vector dimensionality, or 0 until the
// first embed when no explicit dimensionality was requested.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	var config *genai.EmbedContentConfig
	if c.dimension > 0 {
		dim := int32(c.dimension)
		config = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	res, err := c.client.Models.EmbedContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("gemini returned empty embedding")
	}

	values := res.Embeddings[0].Values
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = float64(v)
	}
	if c.dimension == 0 {
		c.dimension = len(vec)
	}
	return vec, nil
}
