package memc

import (
	"context"
	"sync"
	"time"

	"github.com/pior/memc/internal/coarsetime"
)

// NewChannelPool creates a channel-based pool and fills it with size
// clients. This is an alternative pool implementation, with fewer
// allocations per checkout.
//
// Waiters are served in the order the runtime delivers channel receives,
// which is FIFO in practice but not guaranteed.
func NewChannelPool(ctx context.Context, constructor func(ctx context.Context) (*FailoverClient, error), size int32) (Pool, error) {
	p := &channelPool{
		resources: make(chan *channelResource, size),
	}

	err := fill(ctx, size, func(ctx context.Context) error {
		client, err := constructor(ctx)
		if err != nil {
			return err
		}

		p.stats.recordCreate()
		p.resources <- &channelResource{
			client:       client,
			pool:         p,
			lastUsedTime: coarsetime.Now(),
		}
		return nil
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

// channelResource implements Resource for channel pool.
type channelResource struct {
	client       *FailoverClient
	pool         *channelPool
	lastUsedTime time.Time
}

func (r *channelResource) Value() *FailoverClient {
	return r.client
}

func (r *channelResource) Release() {
	r.lastUsedTime = coarsetime.Now()
	r.pool.put(r)
}

func (r *channelResource) ReleaseUnused() {
	r.pool.put(r)
}

// IdleDuration is measured with the coarse clock, so it lags by up to
// coarsetime.Resolution.
func (r *channelResource) IdleDuration() time.Duration {
	return coarsetime.Since(r.lastUsedTime)
}

// channelPool is a fixed set of clients circulating through a buffered
// channel. The channel capacity equals the pool size, so returning a client
// never blocks.
type channelPool struct {
	resources chan *channelResource

	mu     sync.Mutex
	closed bool

	stats poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	if err := ctx.Err(); err != nil {
		p.stats.recordAcquireError()
		return nil, err
	}

	// Fast path: an idle client is ready
	select {
	case res, ok := <-p.resources:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordCheckout()
		return res, nil
	default:
	}

	waitStart := time.Now()
	select {
	case res, ok := <-p.resources:
		if !ok {
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}
		p.stats.recordAcquireWait(time.Since(waitStart).Nanoseconds())
		p.stats.recordCheckout()
		return res, nil
	case <-ctx.Done():
		p.stats.recordAcquireError()
		return nil, ctx.Err()
	}
}

// put returns a client to the channel. The mutex is held during the send so
// that Close cannot close the channel in between.
func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = res.client.Close()
		return
	}

	p.stats.recordRelease()
	select {
	case p.resources <- res:
	default:
		// Unreachable with a fixed set of clients: the channel has room for all.
		_ = res.client.Close()
	}
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource

	for {
		select {
		case res, ok := <-p.resources:
			if !ok {
				return idle
			}
			p.stats.recordCheckout()
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

func (p *channelPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.resources)
	p.mu.Unlock()

	// Close all idle clients; borrowed ones are closed by put
	for res := range p.resources {
		_ = res.client.Close()
	}
}

// Stats returns a snapshot of pool statistics.
func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
