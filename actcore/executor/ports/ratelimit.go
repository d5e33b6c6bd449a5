package actionports

import "context"

// RateLimiter coordinates model-call throughput across agents sharing a provider.
type RateLimiter interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
