package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// OllamaConfig holds connection details shared by the Ollama embedder and
// generation backend.
type OllamaConfig struct {
	BaseURL       string `yaml:"base_url"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// GeminiConfig holds configuration for the Gemini embedder and backend.
type GeminiConfig struct {
	APIKeyEnv     string `yaml:"api_key_env"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
	Dimension     int    `yaml:"dimension"`
}

// OpenAIBackendConfig holds configuration for the OpenAI-compatible
// generation backend.
type OpenAIBackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// EmbedderConfig selects and configures the embedding capability.
type EmbedderConfig struct {
	Type   string                `yaml:"type"` // tfidf (default), openai, ollama, gemini
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// BackendConfig selects and configures the generation capability.
type BackendConfig struct {
	Type        string               `yaml:"type"` // ollama (default), openai, gemini
	OpenAI      *OpenAIBackendConfig `yaml:"openai,omitempty"`
	TimeoutSecs int                  `yaml:"timeout_secs"`
	MaxRetries  int                  `yaml:"max_retries"`
}

// RetrievalConfig bounds per-turn retrieval and prompt assembly.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k"`
	MaxContextChars int `yaml:"max_context_chars"`
}

// SessionConfig bounds conversation history and debug output.
type SessionConfig struct {
	MaxHistoryTurns int  `yaml:"max_history_turns"`
	Debug           bool `yaml:"debug"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	CorpusPath string          `yaml:"corpus_path"`
	Embedder   EmbedderConfig  `yaml:"embedder"`
	Backend    BackendConfig   `yaml:"backend"`
	Retrieval  RetrievalConfig `yaml:"retrieval"`
	Session    SessionConfig   `yaml:"session"`
	Ollama     OllamaConfig    `yaml:"ollama"`
	Gemini     GeminiConfig    `yaml:"gemini"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/coach/config.yaml.
// If neither exists, it writes defaults to ~/.config/coach/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "coach", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		CorpusPath: "data/support_faq.md",
		Embedder:   EmbedderConfig{Type: "tfidf"},
		Backend:    BackendConfig{Type: "ollama", TimeoutSecs: 60, MaxRetries: 1},
		Retrieval:  RetrievalConfig{TopK: 3, MaxContextChars: 2000},
		Session:    SessionConfig{MaxHistoryTurns: 10},
		Ollama:     OllamaConfig{BaseURL: "http://localhost:11434", EmbedModel: "nomic-embed-text", GenerateModel: "llama3.2", TimeoutSecs: 60},
		Gemini:     GeminiConfig{APIKeyEnv: "GEMINI_API_KEY", EmbedModel: "gemini-embedding-001", GenerateModel: "gemini-2.5-flash"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.CorpusPath == "" {
		cfg.CorpusPath = "data/support_faq.md"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.MaxContextChars == 0 {
		cfg.Retrieval.MaxContextChars = 2000
	}
	if cfg.Session.MaxHistoryTurns == 0 {
		cfg.Session.MaxHistoryTurns = 10
	}
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = 60
	}
	if cfg.Backend.MaxRetries == 0 {
		cfg.Backend.MaxRetries = 1
	}
	if cfg.Ollama.BaseURL == "" {
		cfg.Ollama.BaseURL = "http://localhost:11434"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}
	if cfg.Ollama.GenerateModel == "" {
		cfg.Ollama.GenerateModel = "llama3.2"
	}
	if cfg.Ollama.TimeoutSecs == 0 {
		cfg.Ollama.TimeoutSecs = 60
	}
	if cfg.Gemini.APIKeyEnv == "" {
		cfg.Gemini.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.Gemini.EmbedModel == "" {
		cfg.Gemini.EmbedModel = "gemini-embedding-001"
	}
	if cfg.Gemini.GenerateModel == "" {
		cfg.Gemini.GenerateModel = "gemini-2.5-flash"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
}
