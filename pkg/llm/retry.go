package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"golang.org/x/time/rate"
)

// DefaultCallTimeout bounds one provider attempt. The provider call is the
// only long-running step in the pipeline; the timeout keeps it from holding
// audit emission hostage.
const DefaultCallTimeout = 30 * time.Second

// RetryingProvider wraps a provider with a rate limiter and retry on
// retryable transport errors. Non-retryable errors surface immediately.
type RetryingProvider struct {
	next     Provider
	limiter  *rate.Limiter
	attempts uint
	timeout  time.Duration
}

// NewRetryingProvider wraps a provider. rps bounds requests per second with
// the given burst; attempts counts total tries including the first.
func NewRetryingProvider(next Provider, rps float64, burst int, attempts uint) *RetryingProvider {
	return &RetryingProvider{
		next:     next,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		attempts: attempts,
		timeout:  DefaultCallTimeout,
	}
}

// WithTimeout overrides the per-attempt timeout.
func (p *RetryingProvider) WithTimeout(d time.Duration) *RetryingProvider {
	p.timeout = d
	return p
}

// Generate applies rate limiting, then retries retryable failures with
// exponential backoff.
func (p *RetryingProvider) Generate(ctx context.Context, in Input) (Output, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Output{}, fmt.Errorf("llm: rate limit wait: %w", err)
	}

	var out Output
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.RetryIf(func(err error) bool {
			var pErr *ProviderError
			return errors.As(err, &pErr) && pErr.Retryable
		}),
		retry.DelayType(retry.BackOffDelay),
	)
	err := r.Do(func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		var callErr error
		out, callErr = p.next.Generate(attemptCtx, in)
		return callErr
	})
	if err != nil {
		return Output{}, err
	}
	return out, nil
}
