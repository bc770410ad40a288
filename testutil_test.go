package resque

import (
	"testing"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque/internal/log"
	"github.com/resquego/resque/internal/nsredis"
)

// newMiniCore spins up a miniredis instance and wraps it the same way
// NewClient/NewWorker do, returning the namespaced handle under test plus a
// raw client for asserting directly against keyspace state.
func newMiniCore(t *testing.T) (*core, *redis.Client, func()) {
	t.Helper()
	s := mrd.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: s.Addr()})
	rdb := nsredis.New(raw, "")
	cleanup := func() {
		_ = raw.Close()
		s.Close()
	}
	return newCore(rdb, log.NewLogger(nil), nil), raw, cleanup
}
