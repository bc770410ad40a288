package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/resquego/resque"
)

const redisAddr = "localhost:6379"

// BenchmarkResult is one row of the closing report.
type BenchmarkResult struct {
	Name     string
	Jobs     int
	Workers  int
	Duration time.Duration
	RatePerS float64
}

var allResults []BenchmarkResult

func clearRedis() {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()
	client.FlushAll(context.Background())
}

func record(name string, jobs, workers int, d time.Duration, count int64) BenchmarkResult {
	r := BenchmarkResult{
		Name:     name,
		Jobs:     jobs,
		Workers:  workers,
		Duration: d,
		RatePerS: float64(count) / d.Seconds(),
	}
	allResults = append(allResults, r)
	log.Printf("%-28s jobs=%-7d workers=%-4d duration=%-10v rate=%.0f/s", name, jobs, workers, d, r.RatePerS)
	return r
}

// enqueueFanout runs numJobs Enqueue calls split evenly across concurrency
// goroutines and returns how many succeeded.
func enqueueFanout(client *resque.Client, numJobs, concurrency int, opts ...resque.EnqueueOption) (int64, time.Duration) {
	payload := map[string]interface{}{
		"data":      "benchmark payload",
		"timestamp": time.Now().Unix(),
	}
	var wg sync.WaitGroup
	var success int64
	perWorker := numJobs / concurrency
	ctx := context.Background()

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := client.Enqueue(ctx, "bench", "BenchmarkJob", payload, opts...); err == nil {
					atomic.AddInt64(&success, 1)
				}
			}
		}()
	}
	wg.Wait()
	return success, time.Since(start)
}

// runEnqueueTier benchmarks raw enqueue throughput at a given concurrency,
// once without status tracking and once with it, so the report shows the
// cost of the WithTrackStatus write.
func runEnqueueTier(numJobs, concurrency int) {
	clearRedis()
	client := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	success, d := enqueueFanout(client, numJobs, concurrency)
	record(fmt.Sprintf("enqueue (c=%d)", concurrency), numJobs, concurrency, d, success)

	clearRedis()
	success, d = enqueueFanout(client, numJobs, concurrency, resque.WithTrackStatus())
	record(fmt.Sprintf("enqueue+track (c=%d)", concurrency), numJobs, concurrency, d, success)
}

// runProcessingTier pre-enqueues numJobs jobs, then spins up workers worth
// of Worker goroutines and times how long they take to drain the queue.
func runProcessingTier(numJobs, workers int) {
	clearRedis()
	client := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr})
	if success, d := enqueueFanout(client, numJobs, 20); success != int64(numJobs) {
		log.Printf("pre-enqueue short by %d jobs in %v", int64(numJobs)-success, d)
	}
	client.Close()

	var processed int64
	factory := resque.NewRegistrationFactory()
	factory.Register("BenchmarkJob", func(ctx context.Context, job *resque.Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	procClient := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr}, resque.WithClientFactory(factory))
	defer procClient.Close()

	runCtx, cancel := context.WithCancel(context.Background())
	var runWg sync.WaitGroup
	start := time.Now()
	for i := 0; i < workers; i++ {
		w, err := resque.NewWorkerFromClient(procClient, "bench", resque.WithInterval(10*time.Millisecond))
		if err != nil {
			log.Fatalf("could not build worker: %v", err)
		}
		runWg.Add(1)
		go func() {
			defer runWg.Done()
			if err := w.Run(runCtx); err != nil {
				log.Printf("worker error: %v", err)
			}
		}()
	}

	deadline := time.After(60 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
poll:
	for {
		select {
		case <-ticker.C:
			if atomic.LoadInt64(&processed) >= int64(numJobs) {
				break poll
			}
		case <-deadline:
			log.Printf("processing tier timed out with %d/%d done", atomic.LoadInt64(&processed), numJobs)
			break poll
		}
	}
	d := time.Since(start)
	cancel()
	runWg.Wait()
	record(fmt.Sprintf("process (w=%d)", workers), numJobs, workers, d, atomic.LoadInt64(&processed))
}

// runDelayedPromotionTier schedules numJobs jobs a few milliseconds out via
// EnqueueIn, starts a DelayedPromoter on a short tick, and times how long
// the promoter takes to drain the schedule into the live queue. This
// exercises the promote-and-cleanup path in delayed.go, which the
// enqueue/process tiers never touch.
func runDelayedPromotionTier(numJobs int) {
	clearRedis()
	client := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	ctx := context.Background()
	for i := 0; i < numJobs; i++ {
		delay := time.Duration(rand.Intn(50)) * time.Millisecond
		if _, err := client.EnqueueIn(ctx, delay, "bench", "BenchmarkJob", map[string]interface{}{"i": i}); err != nil {
			log.Fatalf("schedule failed: %v", err)
		}
	}

	promoter := resque.NewDelayedPromoter(client, 5*time.Millisecond)
	runCtx, cancel := context.WithCancel(ctx)
	go promoter.Run(runCtx)

	start := time.Now()
	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	var size int64
poll:
	for {
		select {
		case <-ticker.C:
			n, err := client.Size(ctx, "bench")
			if err == nil {
				size = n
			}
			if size >= int64(numJobs) {
				break poll
			}
		case <-deadline:
			log.Printf("delayed promotion timed out with %d/%d promoted", size, numJobs)
			break poll
		}
	}
	d := time.Since(start)
	cancel()
	record("delayed promotion", numJobs, 1, d, size)
}

// runPredicateDequeueTier enqueues numJobs jobs, half tagged with a
// matching arg, and times a single Client.Dequeue call using an
// ArgsPredicate — the non-destructive removal path queue.go adds on top
// of the teacher's plain pop.
func runPredicateDequeueTier(numJobs int) {
	clearRedis()
	client := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	ctx := context.Background()
	var tagged int64
	for i := 0; i < numJobs; i++ {
		args := map[string]interface{}{"batch": "keep"}
		if i%2 == 0 {
			args = map[string]interface{}{"batch": "stale"}
			tagged++
		}
		if _, err := client.Enqueue(ctx, "bench", "BenchmarkJob", args); err != nil {
			log.Fatalf("enqueue failed: %v", err)
		}
	}

	start := time.Now()
	removed, err := client.Dequeue(ctx, "bench", resque.ArgsPredicate("BenchmarkJob", map[string]interface{}{"batch": "stale"}))
	d := time.Since(start)
	if err != nil {
		log.Fatalf("predicate dequeue failed: %v", err)
	}
	record("predicate dequeue", numJobs, 1, d, removed)
	if removed != tagged {
		log.Printf("predicate dequeue removed %d, expected %d", removed, tagged)
	}
}

// runMixedLoadTier runs concurrent enqueue and process traffic for a fixed
// wall-clock window and reports both sides' steady-state rate.
func runMixedLoadTier(d time.Duration, enqueueWorkers, processWorkers int) {
	clearRedis()

	var processed int64
	factory := resque.NewRegistrationFactory()
	factory.Register("BenchmarkJob", func(ctx context.Context, job *resque.Job) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})
	procClient := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr}, resque.WithClientFactory(factory))

	runCtx, cancel := context.WithCancel(context.Background())
	var runWg sync.WaitGroup
	for i := 0; i < processWorkers; i++ {
		w, err := resque.NewWorkerFromClient(procClient, "bench", resque.WithInterval(5*time.Millisecond))
		if err != nil {
			log.Fatalf("could not build worker: %v", err)
		}
		runWg.Add(1)
		go func() {
			defer runWg.Done()
			if err := w.Run(runCtx); err != nil {
				log.Printf("worker error: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond) // let workers register before load starts

	var enqueued int64
	stop := make(chan struct{})
	client := resque.NewClient(resque.RedisClientOpt{Addr: redisAddr})
	payload := map[string]interface{}{"data": "mixed"}
	ctx := context.Background()
	for i := 0; i < enqueueWorkers; i++ {
		go func() {
			for {
				select {
				case <-stop:
					return
				default:
					if _, err := client.Enqueue(ctx, "bench", "BenchmarkJob", payload); err == nil {
						atomic.AddInt64(&enqueued, 1)
					}
				}
			}
		}()
	}

	start := time.Now()
	time.Sleep(d)
	close(stop)
	elapsed := time.Since(start)
	time.Sleep(time.Second) // drain whatever is already in flight

	cancel()
	runWg.Wait()
	client.Close()
	procClient.Close()

	record("mixed enqueue", int(atomic.LoadInt64(&enqueued)), enqueueWorkers, elapsed, atomic.LoadInt64(&enqueued))
	record("mixed process", int(atomic.LoadInt64(&processed)), processWorkers, elapsed, atomic.LoadInt64(&processed))
}

func printReport() {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCENARIO\tJOBS\tWORKERS\tDURATION\tRATE/S")
	for _, r := range allResults {
		fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%.0f\n", r.Name, r.Jobs, r.Workers, r.Duration.Round(time.Millisecond), r.RatePerS)
	}
	w.Flush()
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Printf("resque benchmark: cores=%d gomaxprocs=%d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	log.Println("-- enqueue --")
	for _, c := range []int{8, 32, 128} {
		runEnqueueTier(20000, c)
	}

	log.Println("-- processing --")
	for _, n := range []int{5, 20, 60} {
		runProcessingTier(20000, n)
	}

	log.Println("-- delayed promotion --")
	runDelayedPromotionTier(5000)

	log.Println("-- predicate dequeue --")
	runPredicateDequeueTier(10000)

	log.Println("-- mixed load --")
	runMixedLoadTier(8*time.Second, 20, 20)

	printReport()
}
