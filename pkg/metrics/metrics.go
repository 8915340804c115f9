// Package metrics provides a lightweight Prometheus-compatible metrics
// registry using only the standard library, exposed in the text exposition
// format over HTTP.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are the default histogram buckets (in seconds).
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram tracks the distribution of observed values in fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
	h.mu.Unlock()
}

// Since observes the duration since t in seconds.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

// Registry holds named metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	help       map[string]string
	order      []string
}

// New creates a Registry.
func New() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		help:       make(map[string]string),
	}
}

func (r *Registry) track(name, help string) {
	if _, seen := r.help[name]; !seen {
		r.order = append(r.order, name)
	}
	r.help[name] = help
}

// Counter returns (or creates) a counter.
func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{}
	r.counters[name] = c
	r.track(name, help)
	return c
}

// Gauge returns (or creates) a gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	r.gauges[name] = g
	r.track(name, help)
	return g
}

// Histogram returns (or creates) a histogram. Nil buckets use DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	b := append([]float64(nil), buckets...)
	sort.Float64s(b)
	h := &Histogram{buckets: b, counts: make([]uint64, len(b))}
	r.histograms[name] = h
	r.track(name, help)
	return h
}

// Render returns the Prometheus text exposition format output.
func (r *Registry) Render() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out string
	for _, name := range r.order {
		if h := r.help[name]; h != "" {
			out += fmt.Sprintf("# HELP %s %s\n", name, h)
		}
		if c, ok := r.counters[name]; ok {
			out += fmt.Sprintf("# TYPE %s counter\n%s %d\n", name, name, c.Value())
			continue
		}
		if g, ok := r.gauges[name]; ok {
			out += fmt.Sprintf("# TYPE %s gauge\n%s %d\n", name, name, g.Value())
			continue
		}
		if h, ok := r.histograms[name]; ok {
			out += fmt.Sprintf("# TYPE %s histogram\n", name)
			h.mu.Lock()
			cumulative := uint64(0)
			for i, b := range h.buckets {
				cumulative += h.counts[i]
				out += fmt.Sprintf("%s_bucket{le=\"%g\"} %d\n", name, b, cumulative)
			}
			out += fmt.Sprintf("%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
			out += fmt.Sprintf("%s_sum %g\n", name, h.sum)
			out += fmt.Sprintf("%s_count %d\n", name, h.count)
			h.mu.Unlock()
		}
	}
	return out
}

// Handler returns an http.Handler serving the rendered metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.Write([]byte(r.Render()))
	})
}
