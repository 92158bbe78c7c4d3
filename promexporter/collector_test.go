package promexporter

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pior/memc"
)

type fakeSource struct {
	client   memc.ClientStats
	pool     memc.PoolStats
	breakers map[memc.Address]gobreaker.State
}

func (s *fakeSource) ClientStats() memc.ClientStats { return s.client }
func (s *fakeSource) PoolStats() memc.PoolStats     { return s.pool }

func (s *fakeSource) BreakerStates() map[memc.Address]gobreaker.State { return s.breakers }

func newFakeSource() *fakeSource {
	return &fakeSource{
		client: memc.ClientStats{Gets: 10, GetHits: 7, Sets: 3, Failovers: 1, Errors: 2},
		pool:   memc.PoolStats{AcquireCount: 13, AcquireWaitTimeNs: 2e9, TotalClients: 5, IdleClients: 4, ActiveClients: 1},
		breakers: map[memc.Address]gobreaker.State{
			{Host: "cache-1", Port: 11211}: gobreaker.StateClosed,
			{Host: "cache-2", Port: 11211}: gobreaker.StateOpen,
		},
	}
}

// gather returns the values of the metrics in family name, indexed by the
// value of label.
func gather(t *testing.T, reg *prometheus.Registry, name, label string) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			key := ""
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label {
					key = lp.GetValue()
				}
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}
	return values
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("main", newFakeSource())))

	ops := gather(t, reg, "memc_operations_total", "op")
	assert.Equal(t, 10.0, ops["get"])
	assert.Equal(t, 3.0, ops["set"])
	assert.Equal(t, 0.0, ops["delete"])
	assert.Len(t, ops, 10)

	assert.Equal(t, map[string]float64{"main": 7}, gather(t, reg, "memc_get_hits_total", "client"))
	assert.Equal(t, map[string]float64{"main": 1}, gather(t, reg, "memc_failovers_total", "client"))
	assert.Equal(t, map[string]float64{"main": 2}, gather(t, reg, "memc_errors_total", "client"))

	assert.Equal(t, map[string]float64{"total": 5, "idle": 4, "active": 1}, gather(t, reg, "memc_pool_clients", "state"))
	assert.Equal(t, map[string]float64{"main": 13}, gather(t, reg, "memc_pool_acquires_total", "client"))
	assert.Equal(t, map[string]float64{"main": 2}, gather(t, reg, "memc_pool_acquire_wait_seconds_total", "client"))

	assert.Equal(t, map[string]float64{"cache-1:11211": 0, "cache-2:11211": 2}, gather(t, reg, "memc_circuit_breaker_state", "server"))
}

func TestCollectorWithoutBreakers(t *testing.T) {
	src := newFakeSource()
	src.breakers = nil

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector("main", src)))

	assert.Empty(t, gather(t, reg, "memc_circuit_breaker_state", "server"))
}

func TestExporter(t *testing.T) {
	e := NewExporter()
	require.NoError(t, e.Register("shard-0", newFakeSource()))
	require.NoError(t, e.Register("shard-1", newFakeSource()))

	err := e.Register("shard-0", newFakeSource())
	assert.Error(t, err, "duplicate client name")

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `memc_operations_total{client="shard-0",op="get"} 10`)
	assert.Contains(t, string(body), `memc_pool_clients{client="shard-1",state="idle"} 4`)
}

func TestExporterListenAndServe(t *testing.T) {
	e := NewExporter()

	_, isHandler := any(e).(http.Handler)
	assert.False(t, isHandler, "the exporter serves through Handler, not itself")

	err := e.ListenAndServe("127.0.0.1:-1")
	assert.Error(t, err)
}
