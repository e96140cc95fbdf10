package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSnapshot struct {
	Connections int
	Objects     int
	Services    int
}

func TestMemoryStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	want := testSnapshot{Connections: 3, Objects: 5, Services: 2}
	require.NoError(t, s.Save(context.Background(), "tick-1", want))

	got, err := s.Load(context.Background(), "tick-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMemoryStoreLoadMissingKey(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDeleteAndExists(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "tick-1", testSnapshot{}))
	exists, err := s.Exists(context.Background(), "tick-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(context.Background(), "tick-1"))
	exists, err = s.Exists(context.Background(), "tick-1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreCountAndList(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "a", testSnapshot{}))
	require.NoError(t, s.Save(context.Background(), "b", testSnapshot{}))

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	keys, err := s.List(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)
}

func TestMemoryStoreOperationsAfterCloseFail(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Close(), ErrStoreClosed)
	_, err := s.Load(context.Background(), "a")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Save(context.Background(), "a", testSnapshot{}), ErrStoreClosed)
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Save(ctx, "a", testSnapshot{}))
}

// Keys are fixed-width UnixNano timestamps in production; Prune trusts
// lexicographic order to mean chronological order.
func TestMemoryStorePruneKeepsNewestKeys(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	ctx := context.Background()
	for _, k := range []string{"1000000000000000001", "1000000000000000002", "1000000000000000003", "1000000000000000004"} {
		require.NoError(t, s.Save(ctx, k, testSnapshot{}))
	}

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1000000000000000003", "1000000000000000004"}, keys)
}

func TestMemoryStorePruneNoopWhenUnderLimit(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "a", testSnapshot{}))

	removed, err := s.Prune(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMemoryStorePruneAfterCloseFails(t *testing.T) {
	s := NewMemoryStore[testSnapshot]()
	require.NoError(t, s.Close())

	_, err := s.Prune(context.Background(), 1)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
