// Package storetest provides a miniredis-backed Storage for unit tests.
package storetest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/authedge/authedge/internal/store"
	"github.com/redis/go-redis/v9"
)

// New starts an in-process redis server and returns a Storage backed by it.
// The server is shut down when the test finishes.
func New(t *testing.T) (store.Storage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return store.NewRedisStorage(rdb), mr
}
