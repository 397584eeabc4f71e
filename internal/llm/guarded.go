package llm

import (
	"context"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/circuitbreaker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/retry"
)

type generator interface {
	Generate(ctx context.Context, req Request) (*Completion, error)
}

// Guarded wraps a generator with retries on transient failures and a
// circuit breaker.
type Guarded struct {
	next  generator
	cb    *circuitbreaker.CircuitBreaker
	retry retry.Config
}

func NewGuarded(next generator, cb *circuitbreaker.CircuitBreaker, retryCfg retry.Config) *Guarded {
	if retryCfg.Retryable == nil {
		retryCfg.Retryable = apperr.IsTransient
	}
	return &Guarded{next: next, cb: cb, retry: retryCfg}
}

func (g *Guarded) Generate(ctx context.Context, req Request) (*Completion, error) {
	return circuitbreaker.ExecuteWithResult(ctx, g.cb, func() (*Completion, error) {
		return retry.DoWithResult(ctx, g.retry, func(ctx context.Context) (*Completion, error) {
			return g.next.Generate(ctx, req)
		})
	})
}
