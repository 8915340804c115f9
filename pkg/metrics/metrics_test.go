package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	r := New()
	c := r.Counter("requests_total", "Total requests.")
	c.Inc()
	c.Add(4)
	if c.Value() != 5 {
		t.Errorf("counter %d, want 5", c.Value())
	}

	g := r.Gauge("inflight", "In-flight requests.")
	g.Inc()
	g.Inc()
	g.Dec()
	g.Set(10)
	if g.Value() != 10 {
		t.Errorf("gauge %d, want 10", g.Value())
	}

	// Same name returns the same metric.
	if r.Counter("requests_total", "") != c {
		t.Error("counter not memoized by name")
	}
}

func TestHistogram(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", "Request latency.", []float64{0.1, 1, 10})
	h.Observe(0.05)
	h.Observe(0.5)
	h.Observe(100)

	out := r.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="1"} 2`,
		`latency_seconds_bucket{le="10"} 2`,
		`latency_seconds_bucket{le="+Inf"} 3`,
		"latency_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q in:\n%s", want, out)
		}
	}
}

func TestRender_Format(t *testing.T) {
	r := New()
	r.Counter("jobs_total", "Jobs processed.").Add(3)
	r.Gauge("queue_depth", "Queue depth.").Set(7)

	out := r.Render()
	for _, want := range []string{
		"# HELP jobs_total Jobs processed.",
		"# TYPE jobs_total counter",
		"jobs_total 3",
		"# TYPE queue_depth gauge",
		"queue_depth 7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q in:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("hits_total", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Errorf("body missing counter:\n%s", rec.Body.String())
	}
}
