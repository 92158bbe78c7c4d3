package memc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/memc/ascii"
)

// Defaults applied to zero Config fields.
const (
	DefaultPoolSize    = 5
	DefaultTimeout     = 10 * time.Second
	DefaultMaxAttempts = 2
)

// Config holds the settings shared by Conn, FailoverClient, Client and
// Cluster. The zero value is usable: zero fields take the documented
// defaults.
type Config struct {
	// PoolSize is the number of FailoverClients owned by a Client.
	// Default: 5.
	PoolSize int32

	// Timeout bounds every blocking socket operation: dial, each write, each
	// read. A context deadline that expires sooner wins.
	// Default: 10s.
	Timeout time.Duration

	// Dialer opens the TCP connections. If nil, a zero net.Dialer is used.
	Dialer *net.Dialer

	// ReadBufferSize is the initial read buffer of a connection.
	// Default: 40960.
	ReadBufferSize int

	// MaxAttempts is the number of times an operation is tried before
	// failing with a *NoServerError. It counts attempts in total, not per
	// address: with 2 attempts and 3 addresses, an operation runs at most
	// twice, each attempt walking the addresses once when disconnected.
	// Default: 2.
	MaxAttempts int

	// AcquireTimeout bounds the wait for a free FailoverClient when the pool
	// is exhausted. Zero waits as long as the operation context allows.
	AcquireTimeout time.Duration

	// IdleTimeout is how long a pooled client may stay unused before its
	// connection is checked with a version command on the next checkout. A
	// connection failing the check is dropped and the command reconnects
	// instead of failing over. Zero disables the check.
	IdleTimeout time.Duration

	// Pool is the pool factory. If nil, NewPuddlePool is used.
	// Alternative: NewChannelPool.
	Pool PoolFactory

	// NewCircuitBreaker creates a circuit breaker for a server address.
	// Called once per address by Client and Cluster; the breaker is shared
	// by every FailoverClient of the pool. If nil, no breaker is used.
	// See NewCircuitBreakerConfig.
	NewCircuitBreaker func(addr Address) *gobreaker.CircuitBreaker[bool]

	// Logger receives failover and reconnection events.
	// Default: slog.Default().
	Logger *slog.Logger

	// for testing purposes only
	dial func(ctx context.Context, addr Address, cfg Config) (*Conn, error)
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Dialer == nil {
		c.Dialer = &net.Dialer{}
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = ascii.DefaultReadSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Pool == nil {
		c.Pool = NewPuddlePool
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.dial == nil {
		c.dial = Dial
	}
	return c
}
