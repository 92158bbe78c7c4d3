package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pior/memc"
)

type Scenario struct {
	Name       string
	ItemsPerOp int
	Run        func(ctx context.Context, client *memc.Client, w *worker) error
}

// worker builds the keys of one benchmark goroutine.
type worker struct {
	uid int64
	id  int
	op  int64
}

func (w *worker) key() string {
	return "bench-" + strconv.FormatInt(w.uid, 10) + "-" + strconv.Itoa(w.id) + "-" + strconv.FormatInt(w.op, 10)
}

func (w *worker) keys(n int) []string {
	keys := make([]string, n)
	for i := range n {
		keys[i] = w.key() + "-" + strconv.Itoa(i)
	}
	return keys
}

type Result struct {
	name        string
	count       int64
	itemsPerOp  int
	duration    time.Duration
	opsPerSec   float64
	itemsPerSec float64
	avgLatency  time.Duration
}

type Config struct {
	servers     string
	pool        string
	poolSize    int
	concurrency int
	count       int64
	only        string
}

// ignoreMiss lets scenarios that target absent keys succeed.
func ignoreMiss(err error) error {
	if memc.IsNotFound(err) {
		return nil
	}
	return err
}

func main() {
	config := Config{}
	flag.StringVar(&config.servers, "servers", "127.0.0.1:11211", "failover list of servers, comma separated")
	flag.StringVar(&config.pool, "pool", "puddle", "pool implementation: channel or puddle")
	flag.IntVar(&config.poolSize, "pool-size", 0, "clients in the pool (default: concurrency)")
	flag.IntVar(&config.concurrency, "concurrency", 1, "number of concurrent workers")
	flag.Int64Var(&config.count, "count", 100_000, "target operation count")
	flag.StringVar(&config.only, "only", "", "run only the specified scenario (e.g. 'set')")
	flag.Parse()

	if config.poolSize == 0 {
		config.poolSize = config.concurrency
	}

	cfg := memc.Config{PoolSize: int32(config.poolSize)}
	switch config.pool {
	case "puddle":
		cfg.Pool = memc.NewPuddlePool
	case "channel":
		cfg.Pool = memc.NewChannelPool
	default:
		log.Fatalf("Invalid pool: %s (must be 'channel' or 'puddle')", config.pool)
	}

	fmt.Printf("Memcached Speed Test\n")
	fmt.Printf("====================\n")
	fmt.Printf("Pool:        %s (%d clients)\n", config.pool, config.poolSize)
	fmt.Printf("Servers:     %s\n", config.servers)
	fmt.Printf("Concurrency: %d\n", config.concurrency)
	fmt.Printf("Target:      %s operations\n\n", formatNumber(config.count))

	addrs, err := memc.ParseAddresses(strings.Split(config.servers, ",")...)
	if err != nil {
		log.Fatalf("Invalid servers: %v", err)
	}

	client, err := memc.NewClient(addrs, cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	uid := rand.Int64N(1_000_000)

	// Verify server is reachable before starting benchmarks
	testKey := fmt.Sprintf("bench-%d-preflight", uid)
	if err := client.Set(ctx, testKey, []byte(testKey), memc.Options{Expire: 1}); err != nil {
		log.Fatalf("Failed to set a test key: %v", err)
	}
	value, err := client.Get(ctx, testKey)
	if err != nil {
		log.Fatalf("Failed to get the test key: %v", err)
	}
	if string(value) != testKey {
		log.Fatalf("Test key value mismatch: expected %q, got %q", testKey, value)
	}
	fmt.Printf("Connection verified!\n\n")

	small := []byte("benchmark-value-0123456789")
	data10kb := make([]byte, 1024*10)
	counter := fmt.Sprintf("bench-%d-counter", uid)
	opts := memc.Options{Expire: 60}

	scenarios := []Scenario{
		{"get-miss", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			_, err := client.Get(ctx, w.key())
			return ignoreMiss(err)
		}},
		{"multi-get-miss-10", 10, func(ctx context.Context, client *memc.Client, w *worker) error {
			_, err := client.GetMulti(ctx, w.keys(10))
			return err
		}},
		{"set", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			return client.Set(ctx, w.key(), small, opts)
		}},
		{"set-noreply", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			return client.Set(ctx, w.key()+"-noreply", small, memc.Options{Expire: 60, NoReply: true})
		}},
		{"get-hit", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			_, err := client.Get(ctx, w.key())
			return err
		}},
		{"multi-set-10", 10, func(ctx context.Context, client *memc.Client, w *worker) error {
			for _, key := range w.keys(10) {
				if err := client.Set(ctx, key, small, opts); err != nil {
					return err
				}
			}
			return nil
		}},
		{"multi-get-hit-10", 10, func(ctx context.Context, client *memc.Client, w *worker) error {
			_, err := client.GetMulti(ctx, w.keys(10))
			return err
		}},
		{"set-10kb", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			return client.Set(ctx, w.key()+"-10kb", data10kb, opts)
		}},
		{"get-hit-10kb", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			_, err := client.Get(ctx, w.key()+"-10kb")
			return err
		}},
		{"delete-found", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			return client.Delete(ctx, w.key(), memc.Options{})
		}},
		{"delete-miss", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			return ignoreMiss(client.Delete(ctx, w.key(), memc.Options{}))
		}},
		{"increment", 1, func(ctx context.Context, client *memc.Client, w *worker) error {
			_, err := client.Incr(ctx, counter, 1, memc.Options{})
			if memc.IsNotFound(err) {
				return ignoreStored(client.Add(ctx, counter, []byte("1"), opts))
			}
			return err
		}},
	}

	var results []Result

	for _, scenario := range scenarios {
		if config.only != "" && scenario.Name != config.only {
			continue
		}

		fmt.Printf("Running: %s\n", scenario.Name)

		result := runBenchmark(ctx, client, config, uid, scenario)

		fmt.Printf("  Completed in %s (%.0f ops/sec, %s avg latency)\n",
			formatDuration(result.duration),
			result.opsPerSec,
			formatDuration(result.avgLatency),
		)

		results = append(results, result)
	}

	fmt.Printf("\n")
	fmt.Printf("%-20s %12s %10s %12s %12s %12s\n", "Operation", "Count", "Duration", "Ops/sec", "Items/sec", "Avg Latency")
	for _, result := range results {
		itemsPerSec := "-"
		if result.itemsPerOp > 1 {
			itemsPerSec = formatNumber(int64(result.itemsPerSec))
		}
		fmt.Printf("%-20s %12s %10s %12s %12s %12s\n",
			result.name,
			formatNumber(result.count),
			formatDuration(result.duration),
			formatNumber(int64(result.opsPerSec)),
			itemsPerSec,
			formatDuration(result.avgLatency),
		)
	}

	printClientStats(client)
}

func ignoreStored(err error) error {
	if memc.IsNotStored(err) {
		return nil
	}
	return err
}

// runBenchmark runs the scenario on config.concurrency goroutines sharing
// config.count operations.
func runBenchmark(ctx context.Context, client *memc.Client, config Config, uid int64, scenario Scenario) Result {
	var wg sync.WaitGroup

	opsPerWorker := config.count / int64(config.concurrency)
	start := time.Now()

	for i := range config.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			w := &worker{uid: uid, id: i}
			for j := range opsPerWorker {
				w.op = j
				if err := scenario.Run(ctx, client, w); err != nil {
					log.Fatalf("Scenario %s failed: %v", scenario.Name, err)
				}
			}
		}()
	}

	wg.Wait()

	duration := time.Since(start)
	total := opsPerWorker * int64(config.concurrency)

	return Result{
		name:        scenario.Name,
		count:       total,
		itemsPerOp:  scenario.ItemsPerOp,
		duration:    duration,
		opsPerSec:   float64(total) / duration.Seconds(),
		itemsPerSec: float64(total*int64(scenario.ItemsPerOp)) / duration.Seconds(),
		avgLatency:  duration / time.Duration(max(opsPerWorker, 1)),
	}
}

func formatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2fM", float64(n)/1_000_000)
	} else if n >= 1_000 {
		return fmt.Sprintf("%.2fK", float64(n)/1_000)
	}
	return strconv.FormatInt(n, 10)
}

func formatDuration(d time.Duration) string {
	if d >= time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	} else if d >= time.Millisecond {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1000)
}

func printClientStats(client *memc.Client) {
	stats := client.ClientStats()
	pool := client.PoolStats()

	fmt.Printf("\n")
	fmt.Printf("Client Statistics\n")
	fmt.Printf("=================\n")
	fmt.Printf("Keys fetched: %s (%s hits)\n", formatNumber(int64(stats.Gets)), formatNumber(int64(stats.GetHits)))
	fmt.Printf("Sets:         %s\n", formatNumber(int64(stats.Sets)))
	fmt.Printf("Failovers:    %d\n", stats.Failovers)
	fmt.Printf("Errors:       %d\n", stats.Errors)

	fmt.Printf("\nPool:\n")
	fmt.Printf("  Clients:  %d (%d idle)\n", pool.TotalClients, pool.IdleClients)
	fmt.Printf("  Acquires: %s\n", formatNumber(int64(pool.AcquireCount)))
	if pool.AcquireWaitCount > 0 {
		waitPct := float64(pool.AcquireWaitCount) / float64(pool.AcquireCount) * 100
		avgWait := time.Duration(pool.AcquireWaitTimeNs / pool.AcquireWaitCount)
		fmt.Printf("  Waited:   %s (%.1f%%, avg %s)\n",
			formatNumber(int64(pool.AcquireWaitCount)),
			waitPct,
			formatDuration(avgWait))
	}
	if pool.AcquireErrors > 0 {
		fmt.Printf("  Errors:   %s\n", formatNumber(int64(pool.AcquireErrors)))
	}
}
