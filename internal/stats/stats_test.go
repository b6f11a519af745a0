package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]int64{100, 200, 300, 400, 1000})

	assert.Equal(t, int64(5), s.Count)
	assert.InDelta(t, 300, s.P50Ms, 1)
	assert.InDelta(t, 1000, s.MaxMs, 1)
	assert.InDelta(t, 1000, s.P99Ms, 1)
	assert.InDelta(t, 400, s.MeanMs, 1)
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestSafeHistogram_ClampsOutOfRange(t *testing.T) {
	h := NewSafeHistogram()
	h.Record(10 * time.Minute)
	h.Record(-time.Second)

	require.Equal(t, int64(2), h.TotalCount())
	assert.InDelta(t, 120000, h.MaxMs(), 120)
}

func TestLive(t *testing.T) {
	l := NewLive()
	l.Add(true, 50*time.Millisecond)
	l.Add(false, 150*time.Millisecond)
	l.Add(true, 100*time.Millisecond)
	l.Add(true, 100*time.Millisecond)

	snap := l.Snapshot()
	assert.Equal(t, uint64(4), snap.Requests)
	assert.Equal(t, uint64(3), snap.Success)
	assert.Equal(t, uint64(1), snap.Fail)
	assert.InDelta(t, 25.0, l.ErrorRate(), 0.001)
	assert.InDelta(t, 100, snap.Latency.MeanMs, 1)
}
