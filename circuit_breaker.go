package memc

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a function that creates circuit breakers for servers.
// This is a helper for common use cases.
//
// A breaker trips after at least 3 requests with 60% of them failing, stays
// open for timeout, then lets maxRequests probes through. Only transport
// failures count: misses and store conflicts are successes.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(Address) *gobreaker.CircuitBreaker[bool] {
	return func(addr Address) *gobreaker.CircuitBreaker[bool] {
		settings := gobreaker.Settings{
			Name:        addr.String(),
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !IsTransportError(err)
			},
		}
		return gobreaker.NewCircuitBreaker[bool](settings)
	}
}

// breakers holds the circuit breaker of each address. It is built once per
// pool and shared by all its clients; gobreaker is safe for concurrent use.
type breakers map[Address]*gobreaker.CircuitBreaker[bool]

func newBreakers(addrs []Address, factory func(Address) *gobreaker.CircuitBreaker[bool]) breakers {
	if factory == nil {
		return nil
	}
	b := make(breakers, len(addrs))
	for _, addr := range addrs {
		if _, ok := b[addr]; !ok {
			b[addr] = factory(addr)
		}
	}
	return b
}

// execute runs fn through the breaker of addr. Only transport errors are
// reported to the breaker as failures. A refusal from an open breaker is a
// transport error so that the caller fails over.
func (b breakers) execute(addr Address, fn func() error) error {
	cb := b[addr]
	if cb == nil {
		return fn()
	}

	var opErr error
	_, err := cb.Execute(func() (bool, error) {
		opErr = fn()
		if IsTransportError(opErr) {
			return false, opErr
		}
		return true, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &TransportError{Op: "breaker", Addr: addr.String(), Err: err}
	}
	return opErr
}

// states returns the current state of each breaker.
func (b breakers) states() map[Address]gobreaker.State {
	states := make(map[Address]gobreaker.State, len(b))
	for addr, cb := range b {
		states[addr] = cb.State()
	}
	return states
}
