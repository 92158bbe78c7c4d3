package promexporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/pior/memc"
)

// Source is implemented by *memc.Client.
type Source interface {
	ClientStats() memc.ClientStats
	PoolStats() memc.PoolStats
	BreakerStates() map[memc.Address]gobreaker.State
}

var _ Source = (*memc.Client)(nil)

// Collector reads the statistics of a Source on every scrape.
type Collector struct {
	src Source

	operations    *prometheus.Desc
	getHits       *prometheus.Desc
	failovers     *prometheus.Desc
	errors        *prometheus.Desc
	poolClients   *prometheus.Desc
	acquires      *prometheus.Desc
	acquireWaits  *prometheus.Desc
	acquireErrors *prometheus.Desc
	acquireWait   *prometheus.Desc
	circuitState  *prometheus.Desc
}

// NewCollector creates a collector labelling every metric with client=name.
func NewCollector(name string, src Source) *Collector {
	labels := prometheus.Labels{"client": name}

	return &Collector{
		src: src,

		operations: prometheus.NewDesc("memc_operations_total",
			"Operations sent, by command. Retrieval counts requested keys.", []string{"op"}, labels),
		getHits: prometheus.NewDesc("memc_get_hits_total",
			"Requested keys that were found.", nil, labels),
		failovers: prometheus.NewDesc("memc_failovers_total",
			"Transport failures that moved a client to its next attempt.", nil, labels),
		errors: prometheus.NewDesc("memc_errors_total",
			"Failed operations, not counting missing keys.", nil, labels),
		poolClients: prometheus.NewDesc("memc_pool_clients",
			"Pooled clients by state.", []string{"state"}, labels),
		acquires: prometheus.NewDesc("memc_pool_acquires_total",
			"Pool acquire attempts.", nil, labels),
		acquireWaits: prometheus.NewDesc("memc_pool_acquire_waits_total",
			"Acquires that had to wait for a free client.", nil, labels),
		acquireErrors: prometheus.NewDesc("memc_pool_acquire_errors_total",
			"Acquires that failed.", nil, labels),
		acquireWait: prometheus.NewDesc("memc_pool_acquire_wait_seconds_total",
			"Time spent waiting for a free client.", nil, labels),
		circuitState: prometheus.NewDesc("memc_circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open).", []string{"server"}, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.getHits
	ch <- c.failovers
	ch <- c.errors
	ch <- c.poolClients
	ch <- c.acquires
	ch <- c.acquireWaits
	ch <- c.acquireErrors
	ch <- c.acquireWait
	ch <- c.circuitState
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.src.ClientStats()

	ops := []struct {
		op    string
		value uint64
	}{
		{"get", stats.Gets},
		{"set", stats.Sets},
		{"add", stats.Adds},
		{"replace", stats.Replaces},
		{"append", stats.Appends},
		{"prepend", stats.Prepends},
		{"cas", stats.CASes},
		{"incr", stats.Incrs},
		{"decr", stats.Decrs},
		{"delete", stats.Deletes},
	}
	for _, o := range ops {
		ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(o.value), o.op)
	}
	ch <- prometheus.MustNewConstMetric(c.getHits, prometheus.CounterValue, float64(stats.GetHits))
	ch <- prometheus.MustNewConstMetric(c.failovers, prometheus.CounterValue, float64(stats.Failovers))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(stats.Errors))

	pool := c.src.PoolStats()
	ch <- prometheus.MustNewConstMetric(c.poolClients, prometheus.GaugeValue, float64(pool.TotalClients), "total")
	ch <- prometheus.MustNewConstMetric(c.poolClients, prometheus.GaugeValue, float64(pool.IdleClients), "idle")
	ch <- prometheus.MustNewConstMetric(c.poolClients, prometheus.GaugeValue, float64(pool.ActiveClients), "active")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(pool.AcquireCount))
	ch <- prometheus.MustNewConstMetric(c.acquireWaits, prometheus.CounterValue, float64(pool.AcquireWaitCount))
	ch <- prometheus.MustNewConstMetric(c.acquireErrors, prometheus.CounterValue, float64(pool.AcquireErrors))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, float64(pool.AcquireWaitTimeNs)/1e9)

	for addr, state := range c.src.BreakerStates() {
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, float64(state), addr.String())
	}
}
