// Package bootstrap assembles the chatbot's components from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/cache/redis"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chat"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chunker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/embedding"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/ingestion"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/llm"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/memory"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/retrieval"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/storage/sqlite"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	vmemory "github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector/memory"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector/milvus"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/circuitbreaker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/config"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/retry"
)

type Services struct {
	Config       *config.Config
	Store        *sqlite.Client
	Index        vector.Index
	Cache        *redis.Client
	Embedder     *embedding.Client
	Pipeline     *ingestion.Pipeline
	Retriever    *retrieval.Retriever
	Orchestrator *chat.Orchestrator

	closers []func() error
}

// Options lets callers swap the language model, mainly for tests and
// offline use.
type Options struct {
	Generator chat.Generator
}

// Build validates cfg and wires every component. On error everything
// opened so far is closed again.
func Build(ctx context.Context, cfg *config.Config, opts Options) (_ *Services, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Services{Config: cfg}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	s.Store, err = sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Store.Close)

	if err = s.Store.InitSchema(ctx); err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		s.Cache, err = redis.NewClient(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.Cache.Close)
	}

	s.Embedder = embedding.NewClient(embeddingProvider(cfg, s.Cache), cfg.Embedding.Dimension)
	if err = s.Embedder.Verify(ctx); err != nil {
		return nil, err
	}

	s.Index, err = vectorIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, s.Index.Close)

	c, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	s.Pipeline = ingestion.NewPipeline(s.Store, s.Embedder, s.Index, c)
	s.Retriever = retrieval.NewRetriever(s.Embedder, s.Index, cfg.RAG.TopK)

	if cfg.Vector.Backend == "memory" {
		if _, err = s.Pipeline.Reindex(ctx); err != nil {
			return nil, err
		}
	}

	generator := opts.Generator
	if generator == nil {
		generator = languageModel(cfg)
	}

	s.Orchestrator = chat.NewOrchestrator(
		s.Store,
		s.Retriever,
		generator,
		memory.NewWindow(s.Store, cfg.RAG.MemoryWindow),
		chat.Config{
			TopK:           cfg.RAG.TopK,
			ExcerptLength:  cfg.RAG.ExcerptLength,
			TitleLength:    cfg.RAG.TitleLength,
			TitleMinLength: cfg.RAG.TitleMinLength,
		},
	)

	logger.Info("Services initialized",
		zap.String("vector_backend", cfg.Vector.Backend),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("redis_cache", s.Cache != nil),
		zap.Bool("resilience", cfg.Resilience.Enabled),
	)

	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("Failed to close resource", zap.Error(err))
		}
	}
	s.closers = nil
}

func embeddingProvider(cfg *config.Config, cache *redis.Client) embedding.Provider {
	var provider embedding.Provider
	namespace := cfg.Embedding.Model

	switch cfg.Embedding.Provider {
	case "hashing":
		provider = embedding.NewHashing(cfg.Embedding.Dimension)
		namespace = fmt.Sprintf("hashing-%d", cfg.Embedding.Dimension)
	default:
		provider = embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey,
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
			Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
		})
	}

	if cfg.Resilience.Enabled {
		provider = embedding.NewGuarded(provider, breaker("embedding", cfg), retryConfig(cfg))
	}

	if cache != nil {
		provider = embedding.NewCached(provider, cache, namespace, time.Duration(cfg.Redis.TTLHours)*time.Hour)
	}

	return provider
}

func languageModel(cfg *config.Config) chat.Generator {
	client := llm.NewClient(llm.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	if !cfg.Resilience.Enabled {
		return client
	}
	return llm.NewGuarded(client, breaker("llm", cfg), retryConfig(cfg))
}

func vectorIndex(ctx context.Context, cfg *config.Config) (vector.Index, error) {
	if cfg.Vector.Backend == "memory" {
		return vmemory.New(cfg.Embedding.Dimension), nil
	}

	client, err := milvus.NewClient(ctx, milvus.Config{
		Endpoint:       cfg.Vector.Endpoint,
		APIKey:         cfg.Vector.APIKey,
		CollectionName: cfg.Vector.CollectionName,
		Dimension:      cfg.Embedding.Dimension,
		NList:          cfg.Vector.IndexNList,
		NProbe:         cfg.Vector.SearchNProbe,
	})
	if err != nil {
		return nil, err
	}

	if err := client.EnsureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func breaker(name string, cfg *config.Config) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker(name, circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Duration(cfg.Resilience.OpenTimeoutSec) * time.Second,
		FailureThreshold: cfg.Resilience.FailureThreshold,
		SuccessThreshold: 1,
		IsFailure:        apperr.IsTransient,
		Logger:           logger.GetLogger(),
	})
}

func retryConfig(cfg *config.Config) retry.Config {
	return retry.Config{
		MaxAttempts:    cfg.Resilience.MaxAttempts,
		InitialDelay:   time.Duration(cfg.Resilience.InitialDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(cfg.Resilience.MaxDelayMs) * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}
}
