package resque

import (
	"sync"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestHealthCheckerReportsSuccess(t *testing.T) {
	s := mrd.RunT(t)
	client := NewClient(RedisClientOpt{Addr: s.Addr()})
	defer client.Close()

	results := make(chan error, 4)
	hc := NewHealthChecker(client, 5*time.Millisecond, func(err error) { results <- err })

	var wg sync.WaitGroup
	hc.Start(&wg)
	defer func() {
		hc.Shutdown()
		wg.Wait()
	}()

	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("healthchecker never pinged")
	}
}

func TestHealthCheckerReportsFailureAfterClose(t *testing.T) {
	s := mrd.RunT(t)
	client := NewClient(RedisClientOpt{Addr: s.Addr()})
	defer client.Close()
	s.Close()

	results := make(chan error, 4)
	hc := NewHealthChecker(client, 5*time.Millisecond, func(err error) { results <- err })

	var wg sync.WaitGroup
	hc.Start(&wg)
	defer func() {
		hc.Shutdown()
		wg.Wait()
	}()

	select {
	case err := <-results:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("healthchecker never reported the closed server")
	}
}
