package memc

import (
	"context"
	"errors"

	"github.com/pior/memc/ascii"
)

// State is the connection state of a FailoverClient.
type State int

const (
	// StateDisconnected means no usable connection: the client has not
	// connected yet, or its last attempt failed on every address.
	StateDisconnected State = iota

	// StateConnected means commands go to the current address.
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// FailoverClient sends commands to the first reachable server of an ordered
// address list.
//
// It holds at most one connection. A transport failure drops it and the
// command is retried, connecting again from the current address and moving
// down the list (wrapping around) until one answers. Logical errors are
// returned as they are and never retried.
//
// A FailoverClient must not be used by two goroutines at once; Client pools
// them for concurrent use.
type FailoverClient struct {
	commands

	addrs    []Address
	current  int
	active   *Conn
	cfg      Config
	breakers breakers
	connects int
}

// NewFailoverClient returns a disconnected client for addrs, tried in order.
// No I/O is done: the first command, or Connect, opens the connection.
func NewFailoverClient(addrs []Address, cfg Config) (*FailoverClient, error) {
	if len(addrs) == 0 {
		return nil, errors.New("memc: no server address")
	}

	cfg = cfg.withDefaults()
	return newFailoverClient(addrs, cfg, newBreakers(addrs, cfg.NewCircuitBreaker), nil), nil
}

// newFailoverClient builds a client sharing breakers and stats with its pool.
// cfg must have its defaults applied.
func newFailoverClient(addrs []Address, cfg Config, b breakers, stats *clientStatsCollector) *FailoverClient {
	f := &FailoverClient{
		addrs:    append([]Address(nil), addrs...),
		cfg:      cfg,
		breakers: b,
	}
	f.commands = commands{
		run: func(ctx context.Context, _ string, verb ascii.Verb, fn func(c *Conn) error) error {
			return f.do(ctx, verb, fn)
		},
		stats: stats,
	}
	return f
}

// State returns StateConnected when the client holds a connection.
func (f *FailoverClient) State() State {
	if f.active != nil {
		return StateConnected
	}
	return StateDisconnected
}

// CurrentIndex returns the position in the address list of the server in
// use, or of the next server to try when disconnected.
func (f *FailoverClient) CurrentIndex() int {
	return f.current
}

// CurrentAddress returns the address at CurrentIndex.
func (f *FailoverClient) CurrentAddress() Address {
	return f.addrs[f.current]
}

// Addresses returns the address list in failover order.
func (f *FailoverClient) Addresses() []Address {
	return append([]Address(nil), f.addrs...)
}

// Connect opens a connection if the client is disconnected. Addresses are
// tried once each, starting at CurrentIndex. When none answers, the client
// stays disconnected and a *NoServerError is returned.
func (f *FailoverClient) Connect(ctx context.Context) error {
	if f.active != nil {
		return nil
	}

	if err := f.connect(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &NoServerError{Attempts: 1, Err: err}
	}
	return nil
}

// Close closes the connection, if any. The client can be used again: the
// next command reconnects.
func (f *FailoverClient) Close() error {
	if f.active == nil {
		return nil
	}
	err := f.active.Close()
	f.active = nil
	return err
}

// connect walks the address list from current, wrapping around, and keeps
// the first connection that succeeds. It returns the last dial error.
func (f *FailoverClient) connect(ctx context.Context) error {
	var lastErr error

	for i := range f.addrs {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx := (f.current + i) % len(f.addrs)
		addr := f.addrs[idx]

		var conn *Conn
		err := f.breakers.execute(addr, func() (err error) {
			conn, err = f.cfg.dial(ctx, addr, f.cfg)
			return err
		})
		if err != nil {
			f.cfg.Logger.Warn("memc: server unreachable", "addr", addr.String(), "error", err)
			lastErr = err
			continue
		}

		f.active = conn
		f.current = idx
		f.connects++

		if f.connects > 1 {
			f.cfg.Logger.Info("memc: reconnected", "addr", addr.String())
		} else {
			f.cfg.Logger.Debug("memc: connected", "addr", addr.String())
		}
		return nil
	}

	return lastErr
}

// checkIdle sends version on the connection of a client that sat unused in
// its pool and drops the connection if the server does not answer.
func (f *FailoverClient) checkIdle(ctx context.Context) {
	conn := f.active
	if conn == nil {
		return
	}

	_, err := conn.Version(ctx)
	if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		return
	}

	f.cfg.Logger.Info("memc: idle connection check failed", "addr", conn.Addr().String(), "error", err)
	f.drop()
}

// drop closes the active connection after a failure.
func (f *FailoverClient) drop() {
	if f.active != nil {
		_ = f.active.Close()
		f.active = nil
	}
}

// do runs fn on the active connection, connecting first if needed.
//
// Up to MaxAttempts attempts are made in total. A failed connect consumes an
// attempt. Transport errors drop the connection and lead to the next attempt;
// any other error is returned immediately, dropping the connection only when
// the stream is out of sync. Context errors never drop it.
func (f *FailoverClient) do(ctx context.Context, verb ascii.Verb, fn func(c *Conn) error) error {
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if f.active == nil {
			if err := f.connect(ctx); err != nil {
				lastErr = err
				continue
			}
		}

		conn := f.active
		err := f.breakers.execute(conn.Addr(), func() error {
			return fn(conn)
		})
		if err == nil {
			return nil
		}

		if !IsTransportError(err) {
			// A command stopped by its context before any I/O leaves the
			// stream untouched.
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return err
			}
			if ascii.ShouldCloseConnection(err) {
				f.drop()
			}
			return err
		}

		f.cfg.Logger.Warn("memc: command failed, failing over",
			"addr", conn.Addr().String(),
			"op", string(verb),
			"attempt", attempt,
			"error", err,
		)
		f.drop()
		f.stats.recordFailover()
		lastErr = err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return &NoServerError{Attempts: f.cfg.MaxAttempts, Err: lastErr}
}
