package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists snapshots to Redis for a fleet of brokers that want
// a shared, external view of recent stats without a local disk. Values
// are cbor-encoded, matching the codec the rest of this package's
// snapshot path already commits to.
//
// The key index is a sorted set with every member scored 0 rather than a
// plain set: fixed-width UnixNano keys sort
// lexicographically into chronological order under a shared score, which
// is what lets Prune evict the oldest snapshots without ever touching a
// value. A plain set has no ordering to exploit.
type RedisStore[T any] struct {
	client *redis.Client
	mu     sync.RWMutex
	closed bool
	ttl    time.Duration
	prefix string
	index  string
}

type RedisStoreConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
	Options  *redis.Options
}

func NewRedisStore[T any](cfg RedisStoreConfig) (*RedisStore[T], error) {
	var client *redis.Client
	if cfg.Options != nil {
		client = redis.NewClient(cfg.Options)
	} else {
		client = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "stats:"
	}
	return &RedisStore[T]{client: client, ttl: cfg.TTL, prefix: prefix, index: prefix + "index"}, nil
}

func (r *RedisStore[T]) makeKey(key string) string { return r.prefix + key }

func (r *RedisStore[T]) Save(ctx context.Context, key string, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	data, err := cbor.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal snapshot: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.makeKey(key), data, r.ttl)
	pipe.ZAdd(ctx, r.index, redis.Z{Score: 0, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore[T]) Load(ctx context.Context, key string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return zero, ErrStoreClosed
	}
	r.mu.RUnlock()

	data, err := r.client.Get(ctx, r.makeKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("store: load snapshot: %w", err)
	}

	var value T
	if err := cbor.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return value, nil
}

func (r *RedisStore[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrStoreClosed
	}
	r.mu.RUnlock()

	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.makeKey(key))
	pipe.ZRem(ctx, r.index, key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore[T]) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false, ErrStoreClosed
	}
	r.mu.RUnlock()

	count, err := r.client.Exists(ctx, r.makeKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("store: check existence: %w", err)
	}
	return count > 0, nil
}

func (r *RedisStore[T]) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	r.mu.RUnlock()

	keys, err := r.client.ZRangeByLex(ctx, r.index, &redis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	return keys, nil
}

// Prune evicts the oldest members of the index — ZRANGE on equally-scored
// members breaks ties lexicographically, so the first count-keep entries
// are exactly the stalest snapshot keys — then deletes their values and
// index entries together in one pipeline.
func (r *RedisStore[T]) Prune(ctx context.Context, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	r.mu.RUnlock()

	if keep < 0 {
		keep = 0
	}

	total, err := r.client.ZCard(ctx, r.index).Result()
	if err != nil {
		return 0, fmt.Errorf("store: count snapshots: %w", err)
	}
	staleCount := total - int64(keep)
	if staleCount <= 0 {
		return 0, nil
	}

	stale, err := r.client.ZRange(ctx, r.index, 0, staleCount-1).Result()
	if err != nil {
		return 0, fmt.Errorf("store: list stale snapshots: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	for _, key := range stale {
		pipe.Del(ctx, r.makeKey(key))
	}
	pipe.ZRem(ctx, r.index, toAnySlice(stale)...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("store: prune snapshots: %w", err)
	}
	return len(stale), nil
}

func (r *RedisStore[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrStoreClosed
	}
	r.closed = true
	return r.client.Close()
}

func (r *RedisStore[T]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	r.mu.RUnlock()

	count, err := r.client.ZCard(ctx, r.index).Result()
	if err != nil {
		return 0, fmt.Errorf("store: count snapshots: %w", err)
	}
	return count, nil
}

func toAnySlice(keys []string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
