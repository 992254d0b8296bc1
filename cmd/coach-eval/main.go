package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

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
	"coach/internal/prompt"
	"coach/internal/retrieval"
	"coach/internal/store"
)

// evalCase pairs an agent question with the corpus section expected to
// dominate retrieval for it.
type evalCase struct {
	id            string
	question      string
	expectedTitle string
}

var evalCases = []evalCase{
	{
		id:            "plan_change",
		question:      "A customer wants to change their mobile plan to a cheaper one. What should I tell them?",
		expectedTitle: "Change mobile plan",
	},
	{
		id:            "cancel_broadband",
		question:      "The customer wants to cancel their broadband contract. How do I handle this?",
		expectedTitle: "Cancel broadband service",
	},
	{
		id:            "billing_dispute",
		question:      "A customer is disputing a charge on their latest bill. What are the steps?",
		expectedTitle: "Billing dispute",
	},
	{
		id:            "late_payment",
		question:      "The customer says they cannot pay their bill on time this month.",
		expectedTitle: "Late payment",
	},
	{
		id:            "lost_phone",
		question:      "The customer lost their phone and is worried about misuse. What do I advise?",
		expectedTitle: "Lost phone",
	},
	{
		id:            "sim_not_working",
		question:      "The customer's SIM card stopped working after an upgrade.",
		expectedTitle: "SIM card not working",
	},
}

func main() {
	_ = godotenv.Load()

	var (
		cfgPath    string
		corpusPath string
		topK       int
		generate   bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/coach/config.yaml if not provided)")
	flag.StringVar(&corpusPath, "corpus", "", "Path to the guidance corpus (overrides config)")
	flag.IntVar(&topK, "k", 3, "Sections to retrieve per question")
	flag.BoolVar(&generate, "generate", false, "Also run the generation backend for each question")
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
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

	var backend domain.GenerationBackend
	if generate {
		backend, err = buildBackend(ctx, cfg, logger)
		if err != nil {
			log.Fatalf("backend init failed: %v", err)
		}
	}

	bar := strings.Repeat("=", 72)
	passed := 0
	for _, ec := range evalCases {
		fmt.Println(bar)
		fmt.Printf("[%s] %s\n", ec.id, ec.question)

		res, err := retrieval.Retrieve(ctx, ec.question, topK, st, sections)
		if err != nil {
			fmt.Printf("  retrieval error: %v\n", err)
			continue
		}
		pc := prompt.Assemble(ec.question, res, cfg.Retrieval.MaxContextChars)

		hit := false
		for i, ss := range res {
			marker := " "
			if ss.Section.Title == ec.expectedTitle {
				marker = "*"
				if i == 0 {
					hit = true
				}
			}
			fmt.Printf("  %s %d. %-32s score=%.4f\n", marker, i+1, ss.Section.Title, ss.Score)
		}
		if hit {
			passed++
			fmt.Printf("  PASS: %q ranked first\n", ec.expectedTitle)
		} else {
			fmt.Printf("  FAIL: expected %q first\n", ec.expectedTitle)
		}

		if backend != nil {
			reply, err := backend.Generate(ctx, prompt.SystemPrompt, pc.Text, nil)
			if err != nil {
				fmt.Printf("  generation error: %v\n", err)
				continue
			}
			fmt.Println("  --- coach reply ---")
			for _, line := range strings.Split(strings.TrimSpace(reply), "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
	}
	fmt.Println(bar)
	fmt.Printf("retrieval: %d/%d questions ranked the expected section first\n", passed, len(evalCases))
	if passed != len(evalCases) {
		os.Exit(1)
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
