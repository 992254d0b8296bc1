// Package gemini provides a generation backend for the Gemini API.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"coach/internal/domain"
)

// Backend generates replies via the Gemini API.
type Backend struct {
	client *genai.Client
	model  string
}

// New creates a Gemini generation backend.
func New(ctx context.Context, apiKey, model string) (*Backend, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Backend{client: client, model: model}, nil
}

// Name returns the identifier of this backend.
func (b *Backend) Name() string { return "gemini" }

// Generate produces one assistant reply from the system prompt, prior turn
// history, and the assembled user message.
func (b *Backend) Generate(ctx context.Context, systemPrompt, userMessage string, history []domain.Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		role := genai.Role(genai.RoleUser)
		if t.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(userMessage, genai.RoleUser))

	var config *genai.GenerateContentConfig
	if systemPrompt != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty reply")
	}
	return text, nil
}
