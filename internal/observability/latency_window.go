package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

type RouteLatency struct {
	Route   string  `json:"route"`
	Samples int     `json:"samples"`
	LastMS  float64 `json:"last_ms"`
	AvgMS   float64 `json:"avg_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	P99MS   float64 `json:"p99_ms"`
}

type StatusCount struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Routes      []RouteLatency `json:"routes"`
	Statuses    []StatusCount  `json:"statuses,omitempty"`
}

// latencyWindow keeps the last maxSamples observations per route in a ring.
type latencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	routes     map[string]*latencyRing
	indicators map[string]int
}

type latencyRing struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func newLatencyWindow(maxSamples int) *latencyWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &latencyWindow{
		maxSamples: maxSamples,
		routes:     make(map[string]*latencyRing),
		indicators: make(map[string]int),
	}
}

func (w *latencyWindow) Observe(route string, ms float64) {
	if route == "" || ms < 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	ring, ok := w.routes[route]
	if !ok {
		ring = &latencyRing{values: make([]float64, w.maxSamples)}
		w.routes[route] = ring
	}
	ring.values[ring.next] = ms
	ring.last = ms
	ring.next++
	if ring.next >= len(ring.values) {
		ring.next = 0
		ring.filled = true
	}
}

func (w *latencyWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.indicators[name]++
}

func (w *latencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	keys := make([]string, 0, len(w.routes))
	for route := range w.routes {
		keys = append(keys, route)
	}
	sort.Strings(keys)

	routes := make([]RouteLatency, 0, len(keys))
	for _, route := range keys {
		ring := w.routes[route]
		n := ring.next
		if ring.filled {
			n = len(ring.values)
		}
		if n == 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, ring.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		routes = append(routes, RouteLatency{
			Route:   route,
			Samples: n,
			LastMS:  round2(ring.last),
			AvgMS:   round2(sum / float64(n)),
			P50MS:   round2(quantile(samples, 0.50)),
			P95MS:   round2(quantile(samples, 0.95)),
			P99MS:   round2(quantile(samples, 0.99)),
		})
	}

	classes := make([]string, 0, len(w.indicators))
	for name := range w.indicators {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	statuses := make([]StatusCount, 0, len(classes))
	for _, name := range classes {
		statuses = append(statuses, StatusCount{Class: name, Count: w.indicators[name]})
	}

	return LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Routes:      routes,
		Statuses:    statuses,
	}
}

// quantile interpolates linearly between the closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
