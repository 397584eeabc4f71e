// Package retrieval finds the chunks most relevant to a question.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/metrics"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/vector"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Filters restrict results by exact metadata match. Empty fields match
// everything.
type Filters struct {
	Department  string
	ContentType string
}

func (f Filters) matches(meta vector.Metadata) bool {
	if f.Department != "" && meta.Department != f.Department {
		return false
	}
	if f.ContentType != "" && meta.ContentType != f.ContentType {
		return false
	}
	return true
}

type Result struct {
	VectorID       string
	Content        string
	RelevanceScore float64
	Metadata       vector.Metadata
}

type Retriever struct {
	embedder    Embedder
	index       vector.Index
	defaultTopK int
}

func NewRetriever(embedder Embedder, index vector.Index, defaultTopK int) *Retriever {
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &Retriever{embedder: embedder, index: index, defaultTopK: defaultTopK}
}

// Retrieve embeds the query once and returns at most k matches that pass
// the filters, most relevant first. Twice k candidates are fetched to leave
// room for filtering. Relevance is 1 - distance and may fall outside [0, 1].
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filters Filters) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query: %w", apperr.ErrEmptyText)
	}
	if k <= 0 {
		k = r.defaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, vec, k*2)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector index: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	results := make([]Result, 0, k)
	for _, m := range matches {
		if !filters.matches(m.Metadata) {
			continue
		}
		results = append(results, Result{
			VectorID:       m.ID,
			Content:        m.Text,
			RelevanceScore: m.Relevance(),
			Metadata:       m.Metadata,
		})
		if len(results) >= k {
			break
		}
	}

	metrics.RetrievalResults.Observe(float64(len(results)))
	logger.Debug("Chunks retrieved",
		zap.Int("candidates", len(matches)),
		zap.Int("results", len(results)),
		zap.String("department", filters.Department),
		zap.String("content_type", filters.ContentType),
	)

	return results, nil
}
