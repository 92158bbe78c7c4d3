package memc

import (
	"context"
	"errors"

	"github.com/jackc/puddle/v2"
)

// NewPuddlePool creates a puddle-based pool and fills it with size clients.
// This is the default pool implementation.
//
// Waiters are served in arrival order: puddle queues them on a FIFO
// semaphore.
func NewPuddlePool(ctx context.Context, constructor func(ctx context.Context) (*FailoverClient, error), size int32) (Pool, error) {
	poolConfig := &puddle.Config[*FailoverClient]{
		Constructor: constructor,
		Destructor: func(f *FailoverClient) {
			_ = f.Close()
		},
		MaxSize: size,
	}

	pool, err := puddle.NewPool(poolConfig)
	if err != nil {
		return nil, err
	}

	if err := fill(ctx, size, pool.CreateResource); err != nil {
		pool.Close()
		return nil, err
	}

	return &puddlePool{pool: pool}, nil
}

// puddlePool wraps puddle.Pool to implement our Pool interface.
type puddlePool struct {
	pool *puddle.Pool[*FailoverClient]
}

func (p *puddlePool) Acquire(ctx context.Context) (Resource, error) {
	res, err := p.pool.Acquire(ctx)
	if errors.Is(err, puddle.ErrClosedPool) {
		return nil, ErrPoolClosed
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *puddlePool) AcquireAllIdle() []Resource {
	puddleResources := p.pool.AcquireAllIdle()
	resources := make([]Resource, len(puddleResources))
	for i, res := range puddleResources {
		resources[i] = res
	}
	return resources
}

func (p *puddlePool) Close() {
	p.pool.Close()
}

// Stats returns a snapshot of pool statistics by converting puddle's stats to our format.
func (p *puddlePool) Stats() PoolStats {
	s := p.pool.Stat()

	return PoolStats{
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()), // Acquires that found no idle client
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
		TotalClients:      s.TotalResources(),
		IdleClients:       s.IdleResources(),
		ActiveClients:     s.AcquiredResources(),
	}
}
