package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"coach/internal/config"
	"coach/internal/corpus"
	"coach/internal/domain"
	"coach/internal/embedding/gemini"
	"coach/internal/embedding/ollama"
	"coach/internal/embedding/openai"
	"coach/internal/embedding/tfidf"
	"coach/internal/generation"
	genGemini "coach/internal/generation/gemini"
	genOllama "coach/internal/generation/ollama"
	genOpenAI "coach/internal/generation/openai"
	"coach/internal/session"
	"coach/internal/store"
	"coach/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath    string
		corpusPath string
		debug      bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/coach/config.yaml if not provided)")
	flag.StringVar(&corpusPath, "corpus", "", "Path to the guidance corpus (overrides config)")
	flag.BoolVar(&debug, "debug", false, "Show retrieved sections and context preview per turn")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if corpusPath != "" {
		cfg.CorpusPath = corpusPath
	}
	if debug {
		cfg.Session.Debug = true
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Session.Debug),
	}))
	ctx := context.Background()

	indexer := corpus.NewIndexer(logger)
	sections, err := indexer.LoadFile(cfg.CorpusPath)
	if err != nil {
		log.Fatalf("failed to load corpus %s: %v", cfg.CorpusPath, err)
	}

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}
	st := store.New(embedder, logger)
	if err := st.Ensure(ctx, sections); err != nil {
		log.Fatalf("failed to index corpus: %v", err)
	}

	backend, err := buildBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("backend init failed: %v", err)
	}

	sess := session.New(sections, st, backend, session.Config{
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		MaxHistoryTurns: cfg.Session.MaxHistoryTurns,
		Debug:           cfg.Session.Debug,
	}, logger)

	m := tui.New(sess, cfg.Session.Debug)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

func buildEmbedder(ctx context.Context, cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.NewEmbedder(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		return openai.NewClient(openai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
	case "ollama":
		return ollama.NewClient(ollama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.EmbedModel,
			Timeout: time.Duration(cfg.Ollama.TimeoutSecs) * time.Second,
		}), nil
	case "gemini":
		return gemini.NewClient(ctx, os.Getenv(cfg.Gemini.APIKeyEnv), cfg.Gemini.EmbedModel, cfg.Gemini.Dimension)
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
		return nil, nil
	}
}

func buildBackend(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (domain.GenerationBackend, error) {
	var backend domain.GenerationBackend
	var err error
	switch cfg.Backend.Type {
	case "ollama", "":
		backend = genOllama.New(genOllama.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.Ollama.GenerateModel,
		})
	case "openai":
		oc := cfg.Backend.OpenAI
		if oc == nil {
			oc = &config.OpenAIBackendConfig{}
		}
		backend, err = genOpenAI.New(genOpenAI.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
		})
	case "gemini":
		backend, err = genGemini.New(ctx, os.Getenv(cfg.Gemini.APIKeyEnv), cfg.Gemini.GenerateModel)
	default:
		log.Fatalf("unknown backend: %s", cfg.Backend.Type)
	}
	if err != nil {
		return nil, err
	}
	retryCfg := generation.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Backend.MaxRetries
	retryCfg.Timeout = time.Duration(cfg.Backend.TimeoutSecs) * time.Second
	return generation.WithRetry(backend, retryCfg, logger), nil
}

func logLevel(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
