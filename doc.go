// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

/*
Package resque provides a Go client and worker for Resque-protocol job
queues backed by Redis.

resque speaks the same Redis keyspace and job envelope as the original Ruby
Resque, so a producer in any language and a worker built with this package
can enqueue and process each other's jobs without translation.

# Features

  - At-Least-Once Delivery: jobs are only removed from their queue once
    reserved, and a crashed worker's in-flight job is visible via its
    registry entry until PruneWorkers reclaims it
  - Delayed/Scheduled Jobs: schedule a job to be promoted onto its queue at
    or after a given time
  - Status Tracking: optionally record and query a job's WAITING, RUNNING,
    FAILED, or COMPLETE state
  - Failure Records: a failed job's exception, message, and backtrace are
    recorded for later inspection
  - Graceful Shutdown: the same signal table as the original (TERM, INT,
    QUIT, USR1, USR2, CONT, ALRM, PIPE)

# Quick Start

Client (enqueue jobs):

	client := resque.NewClient(resque.RedisClientOpt{
		Addr: "localhost:6379",
	})
	defer client.Close()

	info, err := client.Enqueue(ctx, "default", "EmailJob", []interface{}{42})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("enqueued: %s", info.ID)

Worker (process jobs):

	factory := resque.NewRegistrationFactory()
	factory.Register("EmailJob", func(ctx context.Context, job *resque.Job) error {
		args, _ := job.Arguments()
		log.Printf("sending email: %v", args)
		return nil
	})

	client := resque.NewClient(
		resque.RedisClientOpt{Addr: "localhost:6379"},
		resque.WithClientFactory(factory),
	)
	defer client.Close()

	worker, err := resque.NewWorkerFromClient(client, []string{"critical", "default", "low"})
	if err != nil {
		log.Fatal(err)
	}

	if err := worker.Run(context.Background()); err != nil {
		log.Fatal(err)
	}

# Job Options

Available options for Client.Enqueue, EnqueueAt, and EnqueueIn:

	WithID(id)           - explicit job id instead of a generated one
	WithDelay(d)         - schedule through the delayed extension
	WithTrackStatus()    - keep a status record queryable via JobStatus

WithTrackStatus is honored by all three. WithID and WithDelay are read by
Enqueue only, and a job that goes through the delayed schedule (EnqueueAt,
EnqueueIn, or Enqueue with WithDelay) always gets a generated id.

# Architecture

resque stores pending jobs as JSON envelopes in per-queue Redis lists,
named the way the original names them ("resque:queue:<name>"). Delayed
jobs live in a "_schdlr_" sorted set keyed by their due timestamp until a
DelayedPromoter moves them onto their target queue. Workers register
themselves under "resque:workers" for the life of their process and record
what they are currently doing, so a Janitor running PruneWorkers on an
interval can reclaim entries left behind by a worker that died without a
clean shutdown.

A running Worker's lifecycle responds to the signal table above: TERM
begins a graceful shutdown that escalates after a delay, INT forces an
immediate one, QUIT stops the worker once its current job finishes,
USR1/ALRM advance the escalation, USR2 pauses new reservations, CONT
resumes them, and PIPE forces a Redis reconnect. ListenForSignals wires
these to real OS signals; callers embedding a Worker in something else can
call the corresponding Worker methods (Terminate, Interrupt, Shutdown,
Escalate, Pause, Resume, Reconnect) directly instead.

# Monitoring

HealthChecker pings Redis on an interval and passes each ping's result
(nil on success) to a callback; it carries no HTTP surface of its own.
*/
package resque
