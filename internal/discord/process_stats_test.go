package discord

import (
	"testing"
	"time"
)

func TestNewProcessStats_DefaultWindowSize(t *testing.T) {
	t.Parallel()

	ps := NewProcessStats(0)
	ps.RecordSuccess(10 * time.Millisecond)

	snap := ps.Snapshot()
	if snap.Latency.P50 != 10*time.Millisecond {
		t.Errorf("P50 = %v, want 10ms", snap.Latency.P50)
	}
}

func TestProcessStats_RecordAndSnapshot(t *testing.T) {
	t.Parallel()

	ps := NewProcessStats(100)
	for i := 1; i <= 100; i++ {
		ps.RecordSuccess(time.Duration(i) * time.Millisecond)
	}
	ps.RecordDuplicate()
	ps.RecordFailure()
	ps.RecordFailure()

	snap := ps.Snapshot()
	if snap.Processed != 100 || snap.Duplicates != 1 || snap.Failed != 2 {
		t.Errorf("counters = %+v", snap)
	}
	if snap.Total() != 103 {
		t.Errorf("Total() = %d, want 103", snap.Total())
	}
	if snap.Latency.P50 != 50*time.Millisecond {
		t.Errorf("P50 = %v, want 50ms", snap.Latency.P50)
	}
	if snap.Latency.P95 != 95*time.Millisecond {
		t.Errorf("P95 = %v, want 95ms", snap.Latency.P95)
	}
}

func TestProcessStats_RingBufferWraps(t *testing.T) {
	t.Parallel()

	ps := NewProcessStats(3)
	ps.RecordSuccess(1 * time.Second)
	ps.RecordSuccess(2 * time.Second)
	ps.RecordSuccess(3 * time.Second)
	// Overwrites the 1s sample.
	ps.RecordSuccess(10 * time.Second)

	snap := ps.Snapshot()
	if snap.Latency.P50 != 3*time.Second {
		t.Errorf("P50 = %v, want 3s", snap.Latency.P50)
	}
	if snap.Latency.P95 != 10*time.Second {
		t.Errorf("P95 = %v, want 10s", snap.Latency.P95)
	}
}

func TestProcessStats_Empty(t *testing.T) {
	t.Parallel()

	snap := NewProcessStats(10).Snapshot()
	if snap.Latency != (LatencyPercentiles{}) || snap.Total() != 0 {
		t.Errorf("empty snapshot = %+v", snap)
	}
}

func TestProcessStats_NilIsNoop(t *testing.T) {
	t.Parallel()

	var ps *ProcessStats
	ps.RecordSuccess(time.Second)
	ps.RecordDuplicate()
	ps.RecordFailure()
	if got := ps.Snapshot(); got.Total() != 0 {
		t.Errorf("nil Snapshot = %+v", got)
	}
}
