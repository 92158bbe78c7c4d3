package memc

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pior/memc/internal"
)

// Cluster shards keys over several Clients. Each shard is a group of
// addresses in failover order; a key always goes to the same shard, chosen
// with jump consistent hashing over its xxh3 hash.
//
// Cluster is safe for concurrent use.
type Cluster struct {
	shards []*Client
}

// NewCluster creates one Client per group of addresses. Every group must
// hold at least one address. All shards share cfg.
func NewCluster(groups [][]Address, cfg Config) (*Cluster, error) {
	if len(groups) == 0 {
		return nil, errors.New("memc: no shard")
	}

	c := &Cluster{shards: make([]*Client, 0, len(groups))}
	for _, addrs := range groups {
		client, err := NewClient(addrs, cfg)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.shards = append(c.shards, client)
	}

	return c, nil
}

// Shards returns the Client of each shard, in group order.
func (c *Cluster) Shards() []*Client {
	return append([]*Client(nil), c.shards...)
}

// Shard returns the Client responsible for key.
func (c *Cluster) Shard(key string) *Client {
	return c.shards[internal.Shard(key, len(c.shards))]
}

// Connect connects the idle clients of every shard.
func (c *Cluster) Connect(ctx context.Context) error {
	var errs []error
	for _, shard := range c.shards {
		errs = append(errs, shard.Connect(ctx))
	}
	return errors.Join(errs...)
}

// Close closes every shard.
func (c *Cluster) Close() {
	for _, shard := range c.shards {
		shard.Close()
	}
}

// ClientStats returns the operation counters summed over all shards.
func (c *Cluster) ClientStats() ClientStats {
	var total ClientStats
	for _, shard := range c.shards {
		s := shard.ClientStats()
		total.Gets += s.Gets
		total.GetHits += s.GetHits
		total.Sets += s.Sets
		total.Adds += s.Adds
		total.Replaces += s.Replaces
		total.Appends += s.Appends
		total.Prepends += s.Prepends
		total.CASes += s.CASes
		total.Incrs += s.Incrs
		total.Decrs += s.Decrs
		total.Deletes += s.Deletes
		total.Failovers += s.Failovers
		total.Errors += s.Errors
	}
	return total
}

func (c *Cluster) Set(ctx context.Context, key string, value []byte, opts Options) error {
	return c.Shard(key).Set(ctx, key, value, opts)
}

func (c *Cluster) Add(ctx context.Context, key string, value []byte, opts Options) error {
	return c.Shard(key).Add(ctx, key, value, opts)
}

func (c *Cluster) Replace(ctx context.Context, key string, value []byte, opts Options) error {
	return c.Shard(key).Replace(ctx, key, value, opts)
}

func (c *Cluster) Append(ctx context.Context, key string, value []byte, opts Options) error {
	return c.Shard(key).Append(ctx, key, value, opts)
}

func (c *Cluster) Prepend(ctx context.Context, key string, value []byte, opts Options) error {
	return c.Shard(key).Prepend(ctx, key, value, opts)
}

func (c *Cluster) CompareAndSwap(ctx context.Context, key string, value []byte, cas uint64, opts Options) error {
	return c.Shard(key).CompareAndSwap(ctx, key, value, cas, opts)
}

func (c *Cluster) Get(ctx context.Context, key string) ([]byte, error) {
	return c.Shard(key).Get(ctx, key)
}

func (c *Cluster) RawGet(ctx context.Context, key string) (*Item, error) {
	return c.Shard(key).RawGet(ctx, key)
}

func (c *Cluster) RawGets(ctx context.Context, key string) (*Item, error) {
	return c.Shard(key).RawGets(ctx, key)
}

func (c *Cluster) Incr(ctx context.Context, key string, delta uint64, opts Options) (uint64, error) {
	return c.Shard(key).Incr(ctx, key, delta, opts)
}

func (c *Cluster) Decr(ctx context.Context, key string, delta uint64, opts Options) (uint64, error) {
	return c.Shard(key).Decr(ctx, key, delta, opts)
}

func (c *Cluster) Delete(ctx context.Context, key string, opts Options) error {
	return c.Shard(key).Delete(ctx, key, opts)
}

// GetMulti returns the values of keys in the same order. Missing keys have a
// nil value. Shards are queried concurrently.
func (c *Cluster) GetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	items, err := c.RawGetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	return orderedValues(keys, items), nil
}

// RawGetMulti returns the items found for keys. Shards are queried
// concurrently; any shard failure fails the whole call.
func (c *Cluster) RawGetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return c.fanOut(ctx, keys, (*Client).RawGetMulti)
}

// RawGetsMulti is RawGetMulti with the cas token of each item.
func (c *Cluster) RawGetsMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return c.fanOut(ctx, keys, (*Client).RawGetsMulti)
}

type multiGetFunc func(client *Client, ctx context.Context, keys []string) (map[string]*Item, error)

func (c *Cluster) fanOut(ctx context.Context, keys []string, get multiGetFunc) (map[string]*Item, error) {
	byShard := make(map[int][]string)
	for _, key := range keys {
		idx := internal.Shard(key, len(c.shards))
		byShard[idx] = append(byShard[idx], key)
	}

	if len(byShard) <= 1 {
		for idx, shardKeys := range byShard {
			return get(c.shards[idx], ctx, shardKeys)
		}
		return map[string]*Item{}, nil
	}

	var mu sync.Mutex
	result := make(map[string]*Item, len(keys))

	g, ctx := errgroup.WithContext(ctx)
	for idx, shardKeys := range byShard {
		g.Go(func() error {
			items, err := get(c.shards[idx], ctx, shardKeys)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for key, item := range items {
				result[key] = item
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
