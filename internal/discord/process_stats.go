package discord

import (
	"math"
	"slices"
	"sync"
	"time"
)

// ProcessStats collects transcript processing latencies and outcome counters
// for display in /meeting stats. It keeps a bounded ring buffer of recent
// durations from which percentiles are computed on demand.
//
// Thread-safe for concurrent use. A nil *ProcessStats ignores all calls.
type ProcessStats struct {
	mu sync.Mutex

	durations latencyBuffer

	processed  int64
	duplicates int64
	failed     int64
}

// NewProcessStats creates a ProcessStats with the given window size
// (maximum number of latency samples retained).
func NewProcessStats(windowSize int) *ProcessStats {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &ProcessStats{durations: newLatencyBuffer(windowSize)}
}

// RecordSuccess records a committed transcript and its processing time.
func (ps *ProcessStats) RecordSuccess(d time.Duration) {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.durations.add(d)
	ps.processed++
}

// RecordDuplicate counts a transcript rejected as already processed.
func (ps *ProcessStats) RecordDuplicate() {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.duplicates++
}

// RecordFailure counts a transcript that could not be processed.
func (ps *ProcessStats) RecordFailure() {
	if ps == nil {
		return
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.failed++
}

// LatencyPercentiles holds p50 and p95 processing durations.
type LatencyPercentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// Snapshot is a point-in-time view of [ProcessStats].
type Snapshot struct {
	Latency    LatencyPercentiles
	Processed  int64
	Duplicates int64
	Failed     int64
}

// Total returns the number of recorded processing attempts.
func (s Snapshot) Total() int64 { return s.Processed + s.Duplicates + s.Failed }

// Snapshot returns a point-in-time view of all counters. A nil receiver
// returns the zero Snapshot.
func (ps *ProcessStats) Snapshot() Snapshot {
	if ps == nil {
		return Snapshot{}
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return Snapshot{
		Latency:    ps.durations.percentiles(),
		Processed:  ps.processed,
		Duplicates: ps.duplicates,
		Failed:     ps.failed,
	}
}

// latencyBuffer is a bounded ring buffer of duration samples.
type latencyBuffer struct {
	data []time.Duration
	pos  int
	full bool
}

func newLatencyBuffer(size int) latencyBuffer {
	return latencyBuffer{data: make([]time.Duration, size)}
}

func (lb *latencyBuffer) add(d time.Duration) {
	lb.data[lb.pos] = d
	lb.pos++
	if lb.pos >= len(lb.data) {
		lb.pos = 0
		lb.full = true
	}
}

func (lb *latencyBuffer) percentiles() LatencyPercentiles {
	n := lb.pos
	if lb.full {
		n = len(lb.data)
	}
	if n == 0 {
		return LatencyPercentiles{}
	}
	sorted := slices.Clone(lb.data[:n])
	slices.Sort(sorted)

	return LatencyPercentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the nearest-rank value at p (0.0-1.0) of sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
