package embedding

import (
	"context"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/apperr"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/circuitbreaker"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/retry"
)

// Guarded retries transient provider failures and sheds load through a
// circuit breaker once the provider keeps failing.
type Guarded struct {
	next  Provider
	cb    *circuitbreaker.CircuitBreaker
	retry retry.Config
}

func NewGuarded(next Provider, cb *circuitbreaker.CircuitBreaker, retryCfg retry.Config) *Guarded {
	if retryCfg.Retryable == nil {
		retryCfg.Retryable = apperr.IsTransient
	}
	return &Guarded{next: next, cb: cb, retry: retryCfg}
}

func (g *Guarded) Embed(ctx context.Context, text string) ([]float32, error) {
	return circuitbreaker.ExecuteWithResult(ctx, g.cb, func() ([]float32, error) {
		return retry.DoWithResult(ctx, g.retry, func(ctx context.Context) ([]float32, error) {
			return g.next.Embed(ctx, text)
		})
	})
}
