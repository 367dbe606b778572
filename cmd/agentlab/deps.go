package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KamdynS/agentlab/config"
	"github.com/KamdynS/agentlab/evaluation/store"
	"github.com/KamdynS/agentlab/llm"
	"github.com/KamdynS/agentlab/llm/anthropic"
	"github.com/KamdynS/agentlab/llm/fake"
	"github.com/KamdynS/agentlab/llm/openai"
	"github.com/KamdynS/agentlab/memory"
	"github.com/KamdynS/agentlab/memory/inmemory"
	redismem "github.com/KamdynS/agentlab/memory/redis"
	"github.com/KamdynS/agentlab/memory/vector/pgvector"
	"github.com/KamdynS/agentlab/rag"
	rds "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// offlineDimensions sizes the hash embedder used without a provider.
const offlineDimensions = 256

// client builds the configured model client: the offline fake, or the
// OpenAI-compatible or Anthropic client wrapped with rate limiting and
// instrumentation. An Anthropic key next to an OpenAI-compatible provider
// becomes the fallback model.
func (a *app) client() (llm.Client, error) {
	c, _, err := a.clients()
	return c, err
}

func (a *app) clients() (llm.Client, *openai.Client, error) {
	cfg := a.cfg.LLM
	if cfg.Offline {
		return fake.WithResponder(fake.Offline()), nil, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		base llm.Client
		oc   *openai.Client
		err  error
	)
	switch cfg.Provider {
	case "anthropic":
		base, err = anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicKey,
			Model:       anthropicModel(cfg.Model),
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	default:
		oc, err = openai.NewClient(openai.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
			Timeout:        cfg.Timeout,
		})
		base = oc
	}
	if err != nil {
		return nil, nil, err
	}
	if cfg.Provider != "anthropic" && cfg.AnthropicKey != "" {
		secondary, err := anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicKey,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		base = &llm.FallbackClient{Primary: base, Secondary: secondary}
	}
	if base, err = routeJudge(cfg, base); err != nil {
		return nil, nil, err
	}
	return llm.NewInstrumentedClient(llm.RateLimited(base, cfg.RequestsPerSecond, cfg.Burst)), oc, nil
}

// routeJudge sends requests naming cfg.JudgeModel to a client of the
// provider serving it. Models of the primary provider need no routing:
// the client honours the request model.
func routeJudge(cfg config.LLMConfig, base llm.Client) (llm.Client, error) {
	if cfg.JudgeModel == "" {
		return base, nil
	}
	var (
		judge llm.Client
		err   error
	)
	switch {
	case cfg.Provider != "anthropic" && llm.ValidateModel(cfg.JudgeModel, llm.ProviderAnthropic) == nil:
		judge, err = anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.AnthropicKey,
			Model:       cfg.JudgeModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case cfg.Provider == "anthropic" && llm.ValidateModel(cfg.JudgeModel, llm.ProviderOpenAI) == nil:
		judge, err = openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.JudgeModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	default:
		return base, nil
	}
	if err != nil {
		return nil, fmt.Errorf("judge model %s: %w", cfg.JudgeModel, err)
	}
	log.Debug().Str("judge_model", cfg.JudgeModel).Str("provider", string(judge.Provider())).Msg("routing judge requests")
	return llm.NewRouterClient(llm.StaticPolicy{
		Default: base,
		ByModel: map[string]llm.Client{cfg.JudgeModel: judge},
	}), nil
}

// anthropicModel keeps the configured model only when Anthropic serves it.
func anthropicModel(name string) string {
	if llm.ValidateModel(name, llm.ProviderAnthropic) == nil {
		return name
	}
	return ""
}

// embedder pairs with clients: remote embeddings need the OpenAI-compatible
// endpoint, everything else hashes.
func (a *app) embedder(oc *openai.Client) rag.Embedder {
	if oc == nil {
		if !a.cfg.LLM.Offline {
			log.Warn().Str("provider", a.cfg.LLM.Provider).Msg("provider has no embeddings endpoint, using hash embeddings")
		}
		return rag.NewHashEmbedder(offlineDimensions)
	}
	return rag.NewOpenAIEmbedder(oc, a.cfg.LLM.EmbeddingModel)
}

// vectorStore opens the configured backend. The returned func releases it.
func (a *app) vectorStore(ctx context.Context, dims int) (memory.VectorStore, func(), error) {
	if a.cfg.Vector.Backend != "pgvector" {
		return inmemory.NewVectorStore(), func() {}, nil
	}
	pool, err := pgvector.Connect(ctx, a.cfg.Vector.DSN)
	if err != nil {
		return nil, nil, err
	}
	s, err := pgvector.New(pool, a.cfg.Vector.Table)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx, dims); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// conversations uses Redis when an address is configured.
func (a *app) conversations() (memory.ConversationStore, func()) {
	if a.cfg.Redis.Addr == "" {
		return inmemory.NewConversationStore(), func() {}
	}
	client := rds.NewClient(&rds.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	return redismem.NewConversationStore(client, "agentlab", a.cfg.Redis.TTL), func() { _ = client.Close() }
}

func (a *app) database() (*store.DB, error) {
	db, err := store.Open(a.cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// readCorpus loads the .txt and .md files of dir, keyed by file name.
func readCorpus(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	docs := map[string]string{}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".txt" && ext != ".md") {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		docs[e.Name()] = string(b)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no .txt or .md files in %s", dir)
	}
	return docs, nil
}
