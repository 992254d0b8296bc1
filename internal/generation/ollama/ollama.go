// Package ollama provides a generation backend for a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"coach/internal/domain"
)

// Backend calls the Ollama /api/chat endpoint, non-streaming.
type Backend struct {
	baseURL string
	model   string
	client  *http.Client
}

// Config configures the Ollama generation backend.
type Config struct {
	BaseURL string
	Model   string
}

// New creates an Ollama generation backend with sensible defaults.
// Per-call timeouts are the caller's responsibility (see generation.WithRetry).
func New(cfg Config) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	return &Backend{baseURL: cfg.BaseURL, model: cfg.Model, client: &http.Client{}}
}

// Name returns the identifier of this backend.
func (b *Backend) Name() string { return "ollama" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Generate produces one assistant reply from the system prompt, prior turn
// history, and the assembled user message.
func (b *Backend) Generate(ctx context.Context, systemPrompt, userMessage string, history []domain.Turn) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	for _, t := range history {
		role := "user"
		if t.Role == domain.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: t.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userMessage})

	data, err := json.Marshal(chatRequest{Model: b.model, Messages: messages, Stream: false})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.Message.Content, nil
}
