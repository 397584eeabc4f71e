// Package embedding turns text into fixed-length vectors and compares them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

// Provider produces a raw embedding for one text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client validates provider output against the configured dimension and
// classifies failures. It never retries; see Guarded for that.
type Client struct {
	provider  Provider
	dimension int
}

func NewClient(provider Provider, dimension int) *Client {
	return &Client{provider: provider, dimension: dimension}
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.ErrEmptyText
	}

	vec, err := c.provider.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, apperr.ErrProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrProviderUnavailable, err)
	}

	if len(vec) == 0 {
		return nil, fmt.Errorf("empty embedding: %w", apperr.ErrMalformedResponse)
	}
	if len(vec) != c.dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d: %w", len(vec), c.dimension, apperr.ErrDimensionMismatch)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("embedding contains non-finite values: %w", apperr.ErrMalformedResponse)
		}
	}

	return vec, nil
}

// EmbedBatch embeds texts in order. The first failure aborts the batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

func (c *Client) Similarity(a, b []float32) (float64, error) {
	return Cosine(a, b)
}

// Verify embeds a sample text so a dimension or credential problem surfaces
// at startup instead of on the first request.
func (c *Client) Verify(ctx context.Context) error {
	if _, err := c.Embed(ctx, "dimension check"); err != nil {
		return fmt.Errorf("embedding provider check failed: %w", err)
	}
	logger.Info("Embedding provider verified", zap.Int("dimension", c.dimension))
	return nil
}

// Cosine returns the cosine similarity of a and b, in [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors of length %d and %d: %w", len(a), len(b), apperr.ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, apperr.ErrZeroMagnitude
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim)), nil
}
