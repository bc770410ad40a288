package resque

import (
	"context"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newMiniWorker(t *testing.T, queues interface{}, opts ...WorkerOption) (*Client, *Worker, func()) {
	t.Helper()
	s := mrd.RunT(t)
	factory := NewRegistrationFactory()
	client := NewClient(RedisClientOpt{Addr: s.Addr()}, WithClientFactory(factory))
	allOpts := append([]WorkerOption{WithInterval(0)}, opts...)
	worker, err := NewWorkerFromClient(client, queues, allOpts...)
	require.NoError(t, err)
	cleanup := func() {
		_ = client.Close()
		s.Close()
	}
	return client, worker, cleanup
}

func TestWorkerRunSinglePassProcessesOneJob(t *testing.T) {
	client, worker, done := newMiniWorker(t, "default")
	defer done()
	ctx := context.Background()

	ran := make(chan struct{}, 1)
	factory := client.core.factory.(*RegistrationFactory)
	factory.Register("EmailJob", func(ctx context.Context, job *Job) error {
		ran <- struct{}{}
		return nil
	})

	_, err := client.Enqueue(ctx, "default", "EmailJob", nil)
	require.NoError(t, err)

	require.NoError(t, worker.Run(ctx))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job handler never ran")
	}

	processed, err := statValue(ctx, client.core.rdb, "processed")
	require.NoError(t, err)
	require.Equal(t, int64(1), processed)
}

func TestWorkerRunUnregistersOnExit(t *testing.T) {
	client, worker, done := newMiniWorker(t, "default")
	defer done()
	ctx := context.Background()

	require.NoError(t, worker.Run(ctx))

	ids, err := liveWorkerIDs(ctx, client.core.rdb)
	require.NoError(t, err)
	require.NotContains(t, ids, worker.ID())
}

func TestWorkerPauseSkipsReservation(t *testing.T) {
	client, worker, done := newMiniWorker(t, "default", WithInterval(time.Millisecond))
	defer done()
	ctx := context.Background()

	factory := client.core.factory.(*RegistrationFactory)
	ran := false
	factory.Register("EmailJob", func(ctx context.Context, job *Job) error {
		ran = true
		return nil
	})

	worker.Pause()
	_, err := client.Enqueue(ctx, "default", "EmailJob", nil)
	require.NoError(t, err)

	runCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_ = worker.Run(runCtx)

	require.False(t, ran, "a paused worker must not reserve new jobs")

	worker.Resume()
}

func TestWorkerKillAbandonsRunningJob(t *testing.T) {
	client, worker, done := newMiniWorker(t, "default", WithInterval(0))
	defer done()
	ctx := context.Background()

	started := make(chan struct{})
	factory := client.core.factory.(*RegistrationFactory)
	factory.Register("SlowJob", func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := client.Enqueue(ctx, "default", "SlowJob", nil, WithTrackStatus())
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- worker.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}
	worker.Kill()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker.Run never returned after Kill")
	}
}

func TestWorkerTerminateEscalatesThroughGracefulSignalToKill(t *testing.T) {
	client, worker, done := newMiniWorker(t, "default",
		WithGracefulDelay(20*time.Millisecond),
		WithGracefulSignal(1),
		WithGracefulDelayTwo(20*time.Millisecond),
	)
	defer done()
	ctx := context.Background()

	started := make(chan struct{})
	canceled := make(chan struct{})
	stuck := make(chan struct{})
	factory := client.core.factory.(*RegistrationFactory)
	factory.Register("StubbornJob", func(ctx context.Context, job *Job) error {
		close(started)
		<-ctx.Done()
		close(canceled)
		<-stuck // never closed: simulates a handler that ignores cancellation
		return ctx.Err()
	})

	_, err := client.Enqueue(ctx, "default", "StubbornJob", nil)
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- worker.Run(ctx) }()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job never started")
	}

	worker.Terminate()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatal("escalation never canceled the job's context via the graceful signal step")
	}

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker.Run never returned after the final KILL escalation")
	}
}

func TestWorkerIDShape(t *testing.T) {
	_, worker, done := newMiniWorker(t, []string{"critical", "default"}, WithHostname("box"), WithPID(123))
	defer done()
	require.Equal(t, "box:123:critical,default", worker.ID())
}
