// Package coarsetime is a low-resolution clock for hot paths that only need
// approximate timestamps, such as pool idle tracking.
//
// The clock is refreshed every Resolution by a background goroutine started
// on first use.
package coarsetime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Resolution is the refresh interval of the clock.
const Resolution = 50 * time.Millisecond

var (
	current atomic.Int64
	start   sync.Once
)

func run() {
	current.Store(time.Now().UnixNano())

	go func() {
		ticker := time.NewTicker(Resolution)
		for t := range ticker.C {
			current.Store(t.UnixNano())
		}
	}()
}

// Now returns the current time, at most Resolution behind time.Now. The
// result carries no monotonic reading.
func Now() time.Time {
	start.Do(run)
	return time.Unix(0, current.Load())
}

// Since returns the time elapsed since t, measured with the coarse clock.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}
