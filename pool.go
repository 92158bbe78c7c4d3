package memc

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed-size checkout queue of FailoverClients.
//
// Implementations create every client up front and never destroy one while
// the pool is open: a borrowed client always comes back through Release.
type Pool interface {
	// Acquire borrows a client, blocking until one is free or ctx is done.
	// Returns ErrPoolClosed once the pool is closed.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle borrows every client that is free right now.
	AcquireAllIdle() []Resource

	// Stats returns a snapshot of the pool statistics.
	Stats() PoolStats

	// Close closes the idle clients and every borrowed client once it is
	// released.
	Close()
}

// Resource is a borrowed FailoverClient.
type Resource interface {
	Value() *FailoverClient

	// Release returns the client to the pool.
	Release()

	// ReleaseUnused returns the client without marking it as used.
	ReleaseUnused()

	// IdleDuration returns the time since the client was last released.
	IdleDuration() time.Duration
}

// PoolFactory creates a pool of size clients built by constructor.
// NewPuddlePool and NewChannelPool are the provided implementations.
type PoolFactory func(ctx context.Context, constructor func(ctx context.Context) (*FailoverClient, error), size int32) (Pool, error)

// fill runs create size times concurrently and returns the first error.
func fill(ctx context.Context, size int32, create func(ctx context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for range size {
		g.Go(func() error {
			return create(ctx)
		})
	}
	return g.Wait()
}
