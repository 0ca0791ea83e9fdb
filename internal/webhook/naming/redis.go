package naming

import "context"

// Incrementer atomically increments a counter and returns its new value.
// *redis.Client from pkg/redis satisfies it.
type Incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisSequence is a Sequence backed by a Redis INCR counter.
type RedisSequence struct {
	client Incrementer
	key    string
}

// NewRedisSequence returns a Sequence that increments key on client.
func NewRedisSequence(client Incrementer, key string) *RedisSequence {
	return &RedisSequence{client: client, key: key}
}

// Next increments the shared counter. Every replica pointed at the same key
// gets a distinct value.
func (s *RedisSequence) Next(ctx context.Context) (int64, error) {
	return s.client.Incr(ctx, s.key)
}
