// Package retry reattempts transient failures with jittered exponential
// backoff. It covers the light call sites that do not warrant a full
// circuit-breaker pipeline, such as market data fetches.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the attempt count and the backoff window
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy suits short exchange reads: three attempts, backoff growing
// from 100ms toward 2s
var DefaultPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// IsTransientFunc classifies an error as worth retrying
type IsTransientFunc func(error) bool

// Do runs fn until it succeeds, a non-transient error occurs, the attempts
// are exhausted, or the context ends. The sleep between attempts doubles
// each round, capped by the policy, with up to 50% random jitter added.
func Do(ctx context.Context, policy RetryPolicy, isTransient IsTransientFunc, fn func() error) error {
	var err error
	backoff := policy.InitialBackoff

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}

		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/2)))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		if backoff *= 2; backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}

	return err
}
