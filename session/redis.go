package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPersistence stores slots as Redis string keys under a prefix. The two credential
// slots are written in one MULTI/EXEC transaction.
type RedisPersistence struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisPersistence returns a [RedisPersistence]. A zero ttl keeps keys until erased.
func NewRedisPersistence(client redis.UniversalClient, prefix string, ttl time.Duration) (*RedisPersistence, error) {
	if client == nil {
		return nil, errors.New("redis persistence requires a client")
	}
	if ttl < 0 {
		return nil, errors.New("redis persistence ttl must be >= 0")
	}
	if prefix == "" {
		prefix = "authclient"
	}
	return &RedisPersistence{redis: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisPersistence) key(slot string) string {
	return r.prefix + ":" + slot
}

func (r *RedisPersistence) Load(ctx context.Context, slots ...string) (map[string]string, error) {
	out := make(map[string]string, len(slots))
	if len(slots) == 0 {
		return out, nil
	}
	keys := make([]string, len(slots))
	for i, slot := range slots {
		keys[i] = r.key(slot)
	}
	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[slots[i]] = s
	}
	return out, nil
}

func (r *RedisPersistence) Save(ctx context.Context, values map[string]string) error {
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for slot, v := range values {
			pipe.Set(ctx, r.key(slot), v, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}

func (r *RedisPersistence) Erase(ctx context.Context, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, len(slots))
	for i, slot := range slots {
		keys[i] = r.key(slot)
	}
	if err := r.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return nil
}

// Ping measures a round-trip to Redis.
func (r *RedisPersistence) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	}
	return time.Since(start), nil
}
