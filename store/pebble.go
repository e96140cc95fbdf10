package store

import (
	"context"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
)

// PebbleStore persists snapshots to an embedded Pebble LSM tree, the
// durable single-node backend, used purely for opt-in stats snapshots.
// Every
// key lives under a single prefix since a snapshot store, unlike a
// session store, never needs to range over more than one namespace.
type PebbleStore[T any] struct {
	db     *pebble.DB
	mu     sync.RWMutex
	closed bool
	prefix []byte
}

type PebbleStoreConfig struct {
	Path   string
	Prefix string
	Opts   *pebble.Options
}

func NewPebbleStore[T any](cfg PebbleStoreConfig) (*PebbleStore[T], error) {
	opts := cfg.Opts
	if opts == nil {
		opts = &pebble.Options{ErrorIfExists: false}
	}

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, err
	}

	prefix := []byte(cfg.Prefix)
	if len(prefix) == 0 {
		prefix = []byte("stats:")
	}

	return &PebbleStore[T]{db: db, prefix: prefix}, nil
}

func (p *PebbleStore[T]) makeKey(key string) []byte {
	out := make([]byte, len(p.prefix)+len(key))
	copy(out, p.prefix)
	copy(out[len(p.prefix):], key)
	return out
}

// snapshotRange iterates every key under p.prefix in ascending order —
// chronological order for the fixed-width UnixNano keys stats.Sampler
// mints — stripping the prefix back off before calling fn. Iteration
// stops at the first error fn returns.
func (p *PebbleStore[T]) snapshotRange(fn func(key string) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: p.prefix,
		UpperBound: append(append([]byte{}, p.prefix...), 0xff),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(string(iter.Key()[len(p.prefix):])); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (p *PebbleStore[T]) Save(ctx context.Context, key string, value T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrStoreClosed
	}
	p.mu.RUnlock()

	data, err := cbor.Marshal(value)
	if err != nil {
		return err
	}
	return p.db.Set(p.makeKey(key), data, pebble.Sync)
}

func (p *PebbleStore[T]) Load(ctx context.Context, key string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return zero, ErrStoreClosed
	}
	p.mu.RUnlock()

	data, closer, err := p.db.Get(p.makeKey(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return zero, ErrNotFound
		}
		return zero, err
	}
	defer closer.Close()

	var value T
	if err := cbor.Unmarshal(data, &value); err != nil {
		return zero, err
	}
	return value, nil
}

func (p *PebbleStore[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrStoreClosed
	}
	p.mu.RUnlock()
	return p.db.Delete(p.makeKey(key), pebble.Sync)
}

func (p *PebbleStore[T]) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return false, ErrStoreClosed
	}
	p.mu.RUnlock()

	_, closer, err := p.db.Get(p.makeKey(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

func (p *PebbleStore[T]) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrStoreClosed
	}
	p.mu.RUnlock()

	var keys []string
	err := p.snapshotRange(func(key string) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

// Prune deletes the oldest keys under p.prefix until at most keep remain,
// batching the deletes into a single write. Ordering relies on the same
// fixed-width, ascending-means-chronological key contract List does.
func (p *PebbleStore[T]) Prune(ctx context.Context, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	p.mu.RUnlock()

	if keep < 0 {
		keep = 0
	}

	var keys []string
	if err := p.snapshotRange(func(key string) error {
		keys = append(keys, key)
		return nil
	}); err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}

	stale := keys[:len(keys)-keep]
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(p.makeKey(key), nil); err != nil {
			return 0, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (p *PebbleStore[T]) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrStoreClosed
	}
	p.closed = true
	return p.db.Close()
}

func (p *PebbleStore[T]) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	p.mu.RUnlock()

	var count int64
	err := p.snapshotRange(func(string) error {
		count++
		return nil
	})
	return count, err
}
