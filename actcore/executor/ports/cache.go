package actionports

import "context"

// Cache memoizes small byte payloads with a TTL. The filesystem stat cache
// is its main consumer.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
