// Package stats aggregates attempt latencies.
package stats

import (
	"sync/atomic"
	"time"
)

// Summary is a latency digest in milliseconds.
type Summary struct {
	Count  int64   `json:"count"`
	P50Ms  float64 `json:"p50_ms"`
	P90Ms  float64 `json:"p90_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
	MeanMs float64 `json:"mean_ms"`
}

// Summarize digests elapsed times given in milliseconds.
func Summarize(elapsedMs []int64) Summary {
	h := NewSafeHistogram()
	for _, ms := range elapsedMs {
		h.Record(time.Duration(ms) * time.Millisecond)
	}
	return h.Summary()
}

// Summary digests the histogram. An empty histogram yields a zero Summary.
func (h *SafeHistogram) Summary() Summary {
	n := h.TotalCount()
	if n == 0 {
		return Summary{}
	}
	return Summary{
		Count:  n,
		P50Ms:  h.QuantileMs(50),
		P90Ms:  h.QuantileMs(90),
		P99Ms:  h.QuantileMs(99),
		MaxMs:  h.MaxMs(),
		MeanMs: h.MeanMs(),
	}
}

// Live holds running totals for a sweep in progress.
type Live struct {
	Requests uint64
	Success  uint64
	Fail     uint64

	Latency *SafeHistogram
}

// Snapshot is a cheap copy of Live for the UI.
type Snapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Latency  Summary
}

func NewLive() *Live {
	return &Live{Latency: NewSafeHistogram()}
}

// Add records one attempt.
func (s *Live) Add(success bool, elapsed time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
	}
	s.Latency.Record(elapsed)
}

// ErrorRate is the failure percentage so far.
func (s *Live) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(reqs)) * 100
}

func (s *Live) Snapshot() Snapshot {
	return Snapshot{
		Requests: atomic.LoadUint64(&s.Requests),
		Success:  atomic.LoadUint64(&s.Success),
		Fail:     atomic.LoadUint64(&s.Fail),
		Latency:  s.Latency.Summary(),
	}
}
