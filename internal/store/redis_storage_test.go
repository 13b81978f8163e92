package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name      string `redis:"name"`
	Count     int64  `redis:"count"`
	CreatedAt int64  `redis:"created_at"`
}

func newTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStorage(rdb), mr
}

func TestSetGet(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	want := testRecord{Name: "alice", Count: 3, CreatedAt: time.Now().UnixMilli()}
	require.NoError(t, storage.Set(ctx, "rec:1", want, time.Minute))

	var got testRecord
	require.NoError(t, storage.Get(ctx, "rec:1", &got))
	require.Equal(t, want, got)

	err := storage.Get(ctx, "rec:missing", &got)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetExpiry(t *testing.T) {
	storage, mr := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "rec:1", testRecord{Name: "a"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var got testRecord
	require.ErrorIs(t, storage.Get(ctx, "rec:1", &got), ErrNotFound)
}

func TestRemoveAtomic(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "rec:1", testRecord{Name: "bob", Count: 1}, time.Minute))

	var got testRecord
	require.NoError(t, storage.Remove(ctx, "rec:1", &got))
	require.Equal(t, "bob", got.Name)

	// second removal must not observe the value again
	require.ErrorIs(t, storage.Remove(ctx, "rec:1", &got), ErrNotFound)
	require.ErrorIs(t, storage.Get(ctx, "rec:1", &got), ErrNotFound)
}

func TestIncrAttrWithWindow(t *testing.T) {
	storage, mr := newTestStorage(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := storage.IncrAttr(ctx, "counter:x", "count", 1)
		require.NoError(t, err)
		require.Equal(t, i, n)
		require.NoError(t, storage.ExpireNX(ctx, "counter:x", time.Minute))
	}

	// window starts at the first increment and is not extended by later ones
	mr.FastForward(2 * time.Minute)
	n, err := storage.IncrAttr(ctx, "counter:x", "count", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPrefixedStore(t *testing.T) {
	storage, mr := newTestStorage(t)
	ctx := context.Background()

	s := New[testRecord](storage, "test:")
	require.NoError(t, s.Set(ctx, "1", testRecord{Name: "carol"}, time.Minute))
	require.True(t, mr.Exists("test:1"))

	got, err := s.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "carol", got.Name)

	removed, err := s.Remove(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "carol", removed.Name)
	_, err = s.Get(ctx, "1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStoreOutageIsNotMissingRecord(t *testing.T) {
	storage, mr := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Set(ctx, "rec:1", testRecord{Name: "alice"}, time.Minute))
	mr.Close()

	var got testRecord
	err := storage.Get(ctx, "rec:1", &got)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)

	err = storage.Remove(ctx, "rec:1", &got)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
