package memc

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/memc/ascii"
)

// Client is a pool of FailoverClients sharing one address list. It is safe
// for concurrent use.
//
// Every operation borrows a client, runs on it and returns it, whatever the
// outcome. When all clients are busy, operations wait for one to be
// returned; Config.AcquireTimeout bounds that wait.
type Client struct {
	commands

	addrs    []Address
	cfg      Config
	pool     Pool
	breakers breakers
}

// New creates a Client with the default configuration for servers given as
// "host[:port]", in failover order.
func New(servers ...string) (*Client, error) {
	addrs, err := ParseAddresses(servers...)
	if err != nil {
		return nil, err
	}
	return NewClient(addrs, Config{})
}

// NewClient creates a Client for addrs, in failover order.
//
// All cfg.PoolSize clients are created immediately and try to connect. A
// client that cannot reach any server is still added to the pool and
// connects on first use.
func NewClient(addrs []Address, cfg Config) (*Client, error) {
	if len(addrs) == 0 {
		return nil, errors.New("memc: no server address")
	}

	cfg = cfg.withDefaults()

	c := &Client{
		addrs:    append([]Address(nil), addrs...),
		cfg:      cfg,
		breakers: newBreakers(addrs, cfg.NewCircuitBreaker),
	}
	c.commands = commands{
		run:   c.runPooled,
		stats: newClientStatsCollector(),
	}

	pool, err := cfg.Pool(context.Background(), c.newFailoverClient, cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	c.pool = pool

	return c, nil
}

// newFailoverClient is the pool constructor. The initial connect is best
// effort: its failure is logged and left to the lazy connect of the first
// command.
func (c *Client) newFailoverClient(ctx context.Context) (*FailoverClient, error) {
	f := newFailoverClient(c.addrs, c.cfg, c.breakers, c.commands.stats)

	if err := f.Connect(ctx); err != nil {
		c.cfg.Logger.Warn("memc: initial connect failed", "error", err)
	}

	return f, nil
}

// runPooled borrows a client for the duration of fn.
func (c *Client) runPooled(ctx context.Context, _ string, verb ascii.Verb, fn func(conn *Conn) error) error {
	return c.with(ctx, func(f *FailoverClient) error {
		return f.do(ctx, verb, fn)
	})
}

// with borrows a client, calls fn and releases the client, even if fn
// panics.
func (c *Client) with(ctx context.Context, fn func(f *FailoverClient) error) error {
	acquireCtx := ctx
	if c.cfg.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, c.cfg.AcquireTimeout)
		defer cancel()
	}

	res, err := c.pool.Acquire(acquireCtx)
	if err != nil {
		return err
	}
	defer res.Release()

	f := res.Value()
	if c.cfg.IdleTimeout > 0 && res.IdleDuration() > c.cfg.IdleTimeout {
		f.checkIdle(ctx)
	}

	return fn(f)
}

// Connect connects every idle client that is disconnected. It returns the
// first error; the other clients are still attempted.
func (c *Client) Connect(ctx context.Context) error {
	var firstErr error

	for _, res := range c.pool.AcquireAllIdle() {
		f := res.Value()
		if f.State() == StateDisconnected {
			if err := f.Connect(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		res.ReleaseUnused()
	}

	return firstErr
}

// Close closes the pool. Each client sends quit to its server. Close waits
// for borrowed clients to be returned.
func (c *Client) Close() {
	c.pool.Close()
}

// Addresses returns the address list in failover order.
func (c *Client) Addresses() []Address {
	return append([]Address(nil), c.addrs...)
}

// ClientStats returns a snapshot of the operation counters.
func (c *Client) ClientStats() ClientStats {
	return c.commands.stats.snapshot()
}

// PoolStats returns a snapshot of the pool statistics.
func (c *Client) PoolStats() PoolStats {
	return c.pool.Stats()
}

// BreakerStates returns the circuit breaker state of each address. Empty
// when no breaker is configured.
func (c *Client) BreakerStates() map[Address]gobreaker.State {
	return c.breakers.states()
}
