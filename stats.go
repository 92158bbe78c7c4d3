package memc

import (
	"sync/atomic"

	"github.com/pior/memc/ascii"
)

// PoolStats contains statistics about a pool of FailoverClients.
//
// For Prometheus integration, expose these as:
//   - Gauges: TotalClients, IdleClients, ActiveClients
//   - Counters: AcquireCount, AcquireWaitCount, AcquireErrors
//   - Summary: AcquireWaitTimeNs / AcquireWaitCount
type PoolStats struct {
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait for a free client
	AcquireErrors     uint64 // Acquires that failed: canceled, timed out or pool closed
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	TotalClients  int32 // Clients owned by the pool; constant once filled
	IdleClients   int32 // Clients available for checkout
	ActiveClients int32 // Clients currently borrowed
}

// ClientStats contains operation counters of a Client.
// All counters are updated atomically.
type ClientStats struct {
	Gets      uint64 // Keys requested by get and gets variants
	GetHits   uint64 // Requested keys that were found
	Sets      uint64
	Adds      uint64
	Replaces  uint64
	Appends   uint64
	Prepends  uint64
	CASes     uint64
	Incrs     uint64
	Decrs     uint64
	Deletes   uint64
	Failovers uint64 // Transport failures that moved a client to its next attempt
	Errors    uint64 // Failed operations, not counting missing keys
}

// poolStatsCollector provides internal methods for updating pool stats.
// Not exported - pools update their own stats.
type poolStatsCollector struct {
	stats PoolStats
}

func (c *poolStatsCollector) recordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *poolStatsCollector) recordAcquireWait(ns int64) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(ns))
}

func (c *poolStatsCollector) recordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *poolStatsCollector) recordCreate() {
	atomic.AddInt32(&c.stats.TotalClients, 1)
	atomic.AddInt32(&c.stats.IdleClients, 1)
}

func (c *poolStatsCollector) recordCheckout() {
	atomic.AddInt32(&c.stats.IdleClients, -1)
	atomic.AddInt32(&c.stats.ActiveClients, 1)
}

func (c *poolStatsCollector) recordRelease() {
	atomic.AddInt32(&c.stats.IdleClients, 1)
	atomic.AddInt32(&c.stats.ActiveClients, -1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		AcquireCount:      atomic.LoadUint64(&c.stats.AcquireCount),
		AcquireWaitCount:  atomic.LoadUint64(&c.stats.AcquireWaitCount),
		AcquireErrors:     atomic.LoadUint64(&c.stats.AcquireErrors),
		AcquireWaitTimeNs: atomic.LoadUint64(&c.stats.AcquireWaitTimeNs),
		TotalClients:      atomic.LoadInt32(&c.stats.TotalClients),
		IdleClients:       atomic.LoadInt32(&c.stats.IdleClients),
		ActiveClients:     atomic.LoadInt32(&c.stats.ActiveClients),
	}
}

// clientStatsCollector provides internal methods for updating client stats.
// A nil collector ignores every record.
type clientStatsCollector struct {
	stats ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordGets(requested, found int) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.stats.Gets, uint64(requested))
	atomic.AddUint64(&c.stats.GetHits, uint64(found))
}

// recordOp counts one operation of verb and its failure, if any.
func (c *clientStatsCollector) recordOp(verb ascii.Verb, err error) {
	if c == nil {
		return
	}

	if counter := c.counter(verb); counter != nil {
		atomic.AddUint64(counter, 1)
	}

	if err != nil && !IsNotFound(err) {
		atomic.AddUint64(&c.stats.Errors, 1)
	}
}

func (c *clientStatsCollector) counter(verb ascii.Verb) *uint64 {
	switch verb {
	case ascii.VerbSet:
		return &c.stats.Sets
	case ascii.VerbAdd:
		return &c.stats.Adds
	case ascii.VerbReplace:
		return &c.stats.Replaces
	case ascii.VerbAppend:
		return &c.stats.Appends
	case ascii.VerbPrepend:
		return &c.stats.Prepends
	case ascii.VerbCAS:
		return &c.stats.CASes
	case ascii.VerbIncr:
		return &c.stats.Incrs
	case ascii.VerbDecr:
		return &c.stats.Decrs
	case ascii.VerbDelete:
		return &c.stats.Deletes
	}
	return nil
}

func (c *clientStatsCollector) recordFailover() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.stats.Failovers, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	if c == nil {
		return ClientStats{}
	}
	return ClientStats{
		Gets:      atomic.LoadUint64(&c.stats.Gets),
		GetHits:   atomic.LoadUint64(&c.stats.GetHits),
		Sets:      atomic.LoadUint64(&c.stats.Sets),
		Adds:      atomic.LoadUint64(&c.stats.Adds),
		Replaces:  atomic.LoadUint64(&c.stats.Replaces),
		Appends:   atomic.LoadUint64(&c.stats.Appends),
		Prepends:  atomic.LoadUint64(&c.stats.Prepends),
		CASes:     atomic.LoadUint64(&c.stats.CASes),
		Incrs:     atomic.LoadUint64(&c.stats.Incrs),
		Decrs:     atomic.LoadUint64(&c.stats.Decrs),
		Deletes:   atomic.LoadUint64(&c.stats.Deletes),
		Failovers: atomic.LoadUint64(&c.stats.Failovers),
		Errors:    atomic.LoadUint64(&c.stats.Errors),
	}
}
