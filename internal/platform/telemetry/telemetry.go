// Package telemetry records HTTP server metrics and serves them in
// Prometheus text exposition format, using only standard library
// constructs. Counters, gauges and histograms are kept in-process; there is
// no collector push.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// durationBuckets are the request-duration histogram boundaries in seconds.
var durationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

type histogram struct {
	boundaries []float64
	counts     []int64 // per-boundary, non-cumulative
	count      int64
	sum        uint64 // math.Float64bits for atomic add
	mu         sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{boundaries: boundaries, counts: make([]int64, len(boundaries))}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	for {
		old := atomic.LoadUint64(&h.sum)
		upd := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(&h.sum, old, upd) {
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.counts[i]++
			return
		}
	}
	// Above every boundary; lands only in +Inf at export time.
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sum)) }

func (h *histogram) cumulative() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.counts))
	copy(raw, h.counts)
	h.mu.Unlock()

	var running int64
	for i, c := range raw {
		running += c
		raw[i] = running
	}
	return raw
}

// Provider holds all metric state for the server.
type Provider struct {
	mu        sync.RWMutex
	durations map[string]*histogram // keyed by method|route|status

	counters sync.Map // table|operation → *int64
	gauges   sync.Map // name → *int64
}

func NewProvider() *Provider {
	return &Provider{durations: map[string]*histogram{}}
}

func (p *Provider) durationFor(key string) *histogram {
	p.mu.RLock()
	h, ok := p.durations[key]
	p.mu.RUnlock()
	if ok {
		return h
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok = p.durations[key]; !ok {
		h = newHistogram(durationBuckets)
		p.durations[key] = h
	}
	return h
}

func counterKey(table, operation string) string { return table + "|" + operation }

// CountOperation increments the per-table domain operation counter; domain
// services call it on every successful write.
func (p *Provider) CountOperation(table, operation string) {
	v, _ := p.counters.LoadOrStore(counterKey(table, operation), new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// Counter returns the current value of a domain operation counter.
func (p *Provider) Counter(table, operation string) int64 {
	v, ok := p.counters.Load(counterKey(table, operation))
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// SetGauge records an instantaneous value, e.g. database pool stats.
func (p *Provider) SetGauge(name string, val int64) {
	v, _ := p.gauges.LoadOrStore(name, new(int64))
	atomic.StoreInt64(v.(*int64), val)
}

func (p *Provider) addGauge(name string, delta int64) {
	v, _ := p.gauges.LoadOrStore(name, new(int64))
	atomic.AddInt64(v.(*int64), delta)
}

// Gauge returns the current value of a gauge.
func (p *Provider) Gauge(name string) int64 {
	v, ok := p.gauges.Load(name)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// Middleware records per-route request durations and the active-request
// gauge.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.addGauge("http.server.active_requests", 1)
			start := time.Now()

			err := next(c)

			p.addGauge("http.server.active_requests", -1)

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			key := fmt.Sprintf("%s|%s|%d", c.Request().Method, route, c.Response().Status)
			p.durationFor(key).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the Prometheus text exposition.
func (p *Provider) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
		p.mu.RLock()
		durations := make(map[string]*histogram, len(p.durations))
		for k, h := range p.durations {
			durations[k] = h
		}
		p.mu.RUnlock()
		for key, h := range durations {
			parts := strings.SplitN(key, "|", 3)
			if len(parts) != 3 {
				continue
			}
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, h)
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.Gauge("http.server.active_requests"))

		b.WriteString("# HELP labflow_operation_count Domain writes by table and operation.\n")
		b.WriteString("# TYPE labflow_operation_count counter\n")
		p.counters.Range(func(k, v interface{}) bool {
			parts := strings.SplitN(k.(string), "|", 2)
			if len(parts) == 2 {
				fmt.Fprintf(&b, "labflow_operation_count{table=%q,operation=%q} %d\n",
					parts[0], parts[1], atomic.LoadInt64(v.(*int64)))
			}
			return true
		})
		b.WriteByte('\n')

		for _, g := range []struct{ prom, name, help string }{
			{"db_pool_active_connections", "db.pool.active_connections", "Active database pool connections."},
			{"db_pool_idle_connections", "db.pool.idle_connections", "Idle database pool connections."},
			{"ws_clients_connected", "ws.clients.connected", "Connected websocket clients."},
		} {
			fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n",
				g.prom, g.help, g.prom, g.prom, p.Gauge(g.name))
		}

		return c.String(http.StatusOK, b.String())
	}
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulative()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, h.Count())
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, h.Count())
}
