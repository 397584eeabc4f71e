package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/metrics"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

// Cache stores embeddings by key. A miss is (nil, false, nil).
type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32, ttl time.Duration) error
}

// Cached serves repeated texts from a cache in front of another provider.
// Cache failures are logged and never fail the embedding.
type Cached struct {
	next      Provider
	cache     Cache
	namespace string
	ttl       time.Duration
}

// NewCached keys entries by namespace and text; use the model name as the
// namespace so vectors of different models never mix.
func NewCached(next Provider, cache Cache, namespace string, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, namespace: namespace, ttl: ttl}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(c.namespace, text)

	vec, ok, err := c.cache.GetEmbedding(ctx, key)
	switch {
	case err != nil:
		metrics.EmbeddingCache.WithLabelValues("error").Inc()
		logger.Warn("Embedding cache read failed", zap.Error(err))
	case ok:
		metrics.EmbeddingCache.WithLabelValues("hit").Inc()
		return vec, nil
	default:
		metrics.EmbeddingCache.WithLabelValues("miss").Inc()
	}

	vec, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetEmbedding(ctx, key, vec, c.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return vec, nil
}

func CacheKey(namespace, text string) string {
	sum := sha256.Sum256([]byte(namespace + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
