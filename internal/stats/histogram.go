package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SafeHistogram is a thread-safe wrapper around hdrhistogram. Values are
// microseconds.
type SafeHistogram struct {
	hist *hdrhistogram.Histogram
	mu   sync.Mutex
}

// NewSafeHistogram covers 1us to 2min at 3 significant figures, well past
// the longest client timeout.
func NewSafeHistogram() *SafeHistogram {
	h := hdrhistogram.New(1, int64(2*time.Minute/time.Microsecond), 3)
	return &SafeHistogram{hist: h}
}

// Record adds a duration. Values past the top of the range are clamped.
func (h *SafeHistogram) Record(d time.Duration) {
	v := d.Microseconds()
	h.mu.Lock()
	defer h.mu.Unlock()
	if v > h.hist.HighestTrackableValue() {
		v = h.hist.HighestTrackableValue()
	}
	if v < 0 {
		v = 0
	}
	_ = h.hist.RecordValue(v)
}

// QuantileMs returns the value at q (0-100) in milliseconds.
func (h *SafeHistogram) QuantileMs(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

// MeanMs returns the mean in milliseconds.
func (h *SafeHistogram) MeanMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean() / 1000.0
}

// MaxMs returns the largest recorded value in milliseconds.
func (h *SafeHistogram) MaxMs() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return float64(h.hist.Max()) / 1000.0
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
