package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pior/memc"
	"github.com/pior/memc/promexporter"
)

type Config struct {
	servers     string
	pool        string
	poolSize    int
	timeout     time.Duration
	attempts    int
	breaker     bool
	metricsAddr string
	verbose     bool
}

func main() {
	config := Config{}
	flag.StringVar(&config.servers, "servers", "127.0.0.1:11211", "failover list of servers, comma separated; shards separated by ';'")
	flag.StringVar(&config.pool, "pool", "puddle", "pool implementation: puddle or channel")
	flag.IntVar(&config.poolSize, "pool-size", memc.DefaultPoolSize, "clients per shard")
	flag.DurationVar(&config.timeout, "timeout", time.Second, "socket timeout")
	flag.IntVar(&config.attempts, "attempts", memc.DefaultMaxAttempts, "attempts per operation")
	flag.BoolVar(&config.breaker, "breaker", false, "enable a circuit breaker per server")
	flag.StringVar(&config.metricsAddr, "metrics", "", "serve Prometheus metrics on this address (e.g. :9150)")
	flag.BoolVar(&config.verbose, "v", false, "log connection events")
	flag.Parse()

	cluster, err := createCluster(config)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer cluster.Close()

	if config.metricsAddr != "" {
		exporter := promexporter.NewExporter()
		for i, shard := range cluster.Shards() {
			if err := exporter.Register("shard-"+strconv.Itoa(i), shard); err != nil {
				log.Fatalf("Failed to register metrics: %v", err)
			}
		}
		go func() {
			if err := exporter.ListenAndServe(config.metricsAddr); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	fmt.Println("Memcached CLI Tool")
	fmt.Println("==================")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		if command == "quit" || command == "exit" {
			fmt.Println("Goodbye!")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*config.timeout)
		start := time.Now()
		err := run(ctx, cluster, command, parts[1:])
		cancel()

		if err != nil {
			fmt.Printf("Error: %v (took %v)\n", err, time.Since(start))
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading input: %v\n", err)
	}
}

func createCluster(config Config) (*memc.Cluster, error) {
	var groups [][]memc.Address
	for _, group := range strings.Split(config.servers, ";") {
		addrs, err := memc.ParseAddresses(strings.Split(group, ",")...)
		if err != nil {
			return nil, err
		}
		groups = append(groups, addrs)
	}

	level := slog.LevelWarn
	if config.verbose {
		level = slog.LevelDebug
	}

	cfg := memc.Config{
		PoolSize:    int32(config.poolSize),
		Timeout:     config.timeout,
		MaxAttempts: config.attempts,
		Logger:      slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	switch config.pool {
	case "puddle":
		cfg.Pool = memc.NewPuddlePool
	case "channel":
		cfg.Pool = memc.NewChannelPool
	default:
		return nil, fmt.Errorf("invalid pool: %s (must be 'channel' or 'puddle')", config.pool)
	}

	if config.breaker {
		cfg.NewCircuitBreaker = memc.NewCircuitBreakerConfig(3, time.Minute, 10*time.Second)
	}

	return memc.NewCluster(groups, cfg)
}

const usage = `Commands:
  get <key>                             - Get a value
  gets <key>                            - Get a value with its cas token
  mget <key1> <key2> ...                - Get several keys at once
  set|add|replace <key> <value> [ttl]   - Store a value
  append|prepend <key> <value>          - Extend a value
  cas <key> <value> <token> [ttl]       - Store if unchanged since gets
  incr|decr <key> <delta>               - Update a counter
  delete <key>                          - Delete a key
  version                               - Show the version of each shard
  stats [group]                         - Show server statistics of each shard
  clientstats                           - Show client and pool statistics
  quit                                  - Exit the CLI`

func run(ctx context.Context, cluster *memc.Cluster, command string, args []string) error {
	start := time.Now()

	switch command {
	case "help":
		fmt.Println(usage)

	case "get", "gets":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <key>", command)
		}
		get := cluster.RawGet
		if command == "gets" {
			get = cluster.RawGets
		}
		item, err := get(ctx, args[0])
		if memc.IsNotFound(err) {
			fmt.Printf("Key not found (took %v)\n", time.Since(start))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Value: %s (took %v)\n", item.Value, time.Since(start))
		fmt.Printf("Flags: %d\n", item.Flags)
		if command == "gets" {
			fmt.Printf("CAS: %d\n", item.CAS)
		}

	case "mget":
		if len(args) == 0 {
			return fmt.Errorf("usage: mget <key1> <key2> ...")
		}
		values, err := cluster.GetMulti(ctx, args)
		if err != nil {
			return err
		}
		found := 0
		for i, value := range values {
			if value == nil {
				fmt.Printf("  %s: <not found>\n", args[i])
				continue
			}
			found++
			fmt.Printf("  %s: %s\n", args[i], value)
		}
		fmt.Printf("Retrieved %d out of %d keys (took %v)\n", found, len(args), time.Since(start))

	case "set", "add", "replace", "append", "prepend":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("usage: %s <key> <value> [ttl_seconds]", command)
		}
		opts, err := parseTTL(args[2:])
		if err != nil {
			return err
		}
		store := map[string]func(context.Context, string, []byte, memc.Options) error{
			"set":     cluster.Set,
			"add":     cluster.Add,
			"replace": cluster.Replace,
			"append":  cluster.Append,
			"prepend": cluster.Prepend,
		}[command]
		if err := store(ctx, args[0], []byte(args[1]), opts); err != nil {
			return err
		}
		fmt.Printf("Stored successfully (took %v)\n", time.Since(start))

	case "cas":
		if len(args) < 3 || len(args) > 4 {
			return fmt.Errorf("usage: cas <key> <value> <token> [ttl_seconds]")
		}
		token, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid cas token: %w", err)
		}
		opts, err := parseTTL(args[3:])
		if err != nil {
			return err
		}
		if err := cluster.CompareAndSwap(ctx, args[0], []byte(args[1]), token, opts); err != nil {
			return err
		}
		fmt.Printf("Stored successfully (took %v)\n", time.Since(start))

	case "incr", "decr":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <key> <delta>", command)
		}
		delta, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid delta: %w", err)
		}
		update := cluster.Incr
		if command == "decr" {
			update = cluster.Decr
		}
		value, err := update(ctx, args[0], delta, memc.Options{})
		if err != nil {
			return err
		}
		fmt.Printf("Value: %d (took %v)\n", value, time.Since(start))

	case "delete", "del":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <key>")
		}
		err := cluster.Delete(ctx, args[0], memc.Options{})
		if memc.IsNotFound(err) {
			fmt.Printf("Key not found (took %v)\n", time.Since(start))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Delete successful (took %v)\n", time.Since(start))

	case "version":
		for i, shard := range cluster.Shards() {
			version, err := shard.Version(ctx)
			if err != nil {
				fmt.Printf("Shard %d: <error: %v>\n", i, err)
				continue
			}
			fmt.Printf("Shard %d: %s\n", i, version)
		}

	case "stats":
		var group string
		if len(args) > 0 {
			group = args[0]
		}
		for i, shard := range cluster.Shards() {
			stats, err := shard.Stats(ctx, group)
			if err != nil {
				fmt.Printf("Shard %d: <error: %v>\n", i, err)
				continue
			}
			fmt.Printf("Shard %d (%s):\n", i, shard.Addresses()[0])
			names := make([]string, 0, len(stats))
			for name := range stats {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Printf("  %s: %s\n", name, stats[name])
			}
		}

	case "clientstats":
		for i, shard := range cluster.Shards() {
			s := shard.ClientStats()
			p := shard.PoolStats()
			fmt.Printf("Shard %d:\n", i)
			fmt.Printf("  Gets: %d (hits: %d)\n", s.Gets, s.GetHits)
			fmt.Printf("  Sets: %d  Deletes: %d  Incrs: %d  Decrs: %d\n", s.Sets, s.Deletes, s.Incrs, s.Decrs)
			fmt.Printf("  Failovers: %d  Errors: %d\n", s.Failovers, s.Errors)
			fmt.Printf("  Pool: %d total, %d idle, %d active\n", p.TotalClients, p.IdleClients, p.ActiveClients)
			for addr, state := range shard.BreakerStates() {
				fmt.Printf("  Breaker %s: %s\n", addr, state)
			}
		}

	default:
		return fmt.Errorf("unknown command: %s. Type 'help' for available commands", command)
	}

	return nil
}

func parseTTL(args []string) (memc.Options, error) {
	if len(args) == 0 {
		return memc.Options{}, nil
	}
	ttl, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return memc.Options{}, fmt.Errorf("invalid TTL: %w", err)
	}
	return memc.Options{Expire: uint32(ttl)}, nil
}
