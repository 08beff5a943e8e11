package telemetry

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultTickWindow is the number of recent tick durations kept for stats.
const DefaultTickWindow = 256

// TickSummary reports recent tick durations in milliseconds.
type TickSummary struct {
	Samples    int     `json:"samples"`
	MeanMillis float64 `json:"meanMillis"`
	StdMillis  float64 `json:"stdMillis"`
	P95Millis  float64 `json:"p95Millis"`
	MaxMillis  float64 `json:"maxMillis"`
}

// TickStats is a fixed window of tick durations.
type TickStats struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewTickStats allocates a window of the given size.
func NewTickStats(window int) *TickStats {
	if window <= 0 {
		window = DefaultTickWindow
	}
	return &TickStats{samples: make([]float64, window)}
}

// Observe records one tick duration.
func (s *TickStats) Observe(d time.Duration) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.samples[s.next] = float64(d) / float64(time.Millisecond)
	s.next++
	if s.next == len(s.samples) {
		s.next = 0
		s.full = true
	}
	s.mu.Unlock()
}

// Summary computes statistics over the current window.
func (s *TickStats) Summary() TickSummary {
	if s == nil {
		return TickSummary{}
	}
	s.mu.Lock()
	n := s.next
	if s.full {
		n = len(s.samples)
	}
	values := make([]float64, n)
	copy(values, s.samples[:n])
	s.mu.Unlock()

	if n == 0 {
		return TickSummary{}
	}
	sort.Float64s(values)
	summary := TickSummary{
		Samples:   n,
		P95Millis: stat.Quantile(0.95, stat.Empirical, values, nil),
		MaxMillis: values[n-1],
	}
	summary.MeanMillis, summary.StdMillis = stat.MeanStdDev(values, nil)
	if n == 1 {
		summary.StdMillis = 0
	}
	return summary
}
