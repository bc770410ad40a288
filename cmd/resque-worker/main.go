// Command resque-worker runs a standalone worker process against a set of
// queues, reading job classes from the process-wide legacy registry
// (resque.RegisterLegacyJob) the way the original resque:work rake task
// reads them from the Ruby load path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/resquego/resque"
)

func main() {
	var (
		redisAddr = flag.String("redis", "localhost:6379", "Redis server address")
		redisDB   = flag.Int("db", 0, "Redis database number")
		queues    = flag.String("queues", "default", "comma-separated queue pattern, e.g. critical,default,low or *")
		interval  = flag.Duration("interval", 5*time.Second, "poll interval between empty reserve attempts")
		blocking  = flag.Bool("blocking", false, "use BLPOP-based reservation instead of polling")
	)
	flag.Parse()

	pattern := strings.Split(*queues, ",")
	for i := range pattern {
		pattern[i] = strings.TrimSpace(pattern[i])
	}

	worker, err := resque.NewWorker(
		resque.RedisClientOpt{Addr: *redisAddr, DB: *redisDB},
		pattern,
		resque.WithInterval(*interval),
		resque.WithBlocking(*blocking),
		resque.WithPID(os.Getpid()),
	)
	if err != nil {
		log.Fatalf("resque-worker: %v", err)
	}

	log.Printf("resque-worker %s starting on %s", worker.ID(), strconv.Quote(*queues))
	if err := worker.Run(withSignals(worker)); err != nil {
		log.Fatalf("resque-worker: %v", fmt.Errorf("worker exited: %w", err))
	}
}

// withSignals starts the worker's real-signal listener in the background
// and returns a context that never needs to carry cancellation itself:
// ListenForSignals drives shutdown through worker's own methods instead.
func withSignals(w *resque.Worker) context.Context {
	go w.ListenForSignals()
	return context.Background()
}
