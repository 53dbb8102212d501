package httpx

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Policy configures the retry combinator.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy matches the collection defaults.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:       4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Do invokes op up to p.Attempts times. A nil isRetryable predicate retries
// every failure. Between attempts it sleeps for a full-jitter backoff:
// a uniform random fraction of min(MaxBackoff, InitialBackoff·2^attempt).
// Cancellation during the sleep returns immediately with the last error.
func Do(ctx context.Context, p Policy, isRetryable func(error) bool, op func(context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt == p.Attempts-1 {
			break
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}

		delay := backoff(p, attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return lastErr
		}
	}
	return lastErr
}

// DoRateLimited is Do with a shared token bucket: every attempt, including
// retries, first waits for the limiter, so retries never exceed the source's
// stated rate. The limiter wait observes cancellation.
func DoRateLimited(ctx context.Context, limiter *rate.Limiter, p Policy, isRetryable func(error) bool, op func(context.Context) error) error {
	paced := func(ctx context.Context) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return op(ctx)
	}
	return Do(ctx, p, isRetryable, paced)
}

// backoff draws the full-jitter delay for the given zero-based attempt.
func backoff(p Policy, attempt int) time.Duration {
	capped := p.MaxBackoff
	exp := p.InitialBackoff << uint(attempt)
	if exp > 0 && exp < capped {
		capped = exp
	}
	if capped <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * float64(capped))
}
