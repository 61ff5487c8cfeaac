package bdev

import "testing"

func TestRecordReadUpdatesCountersAndBytes(t *testing.T) {
	s := NewStats()
	s.RecordRead(4096, 1000, true)
	s.RecordRead(0, 2000, false)

	if s.ReadOps.Load() != 2 {
		t.Fatalf("expected 2 read ops, got %d", s.ReadOps.Load())
	}
	if s.ReadBytes.Load() != 4096 {
		t.Fatalf("expected 4096 bytes, got %d", s.ReadBytes.Load())
	}
	if s.ReadErrors.Load() != 1 {
		t.Fatalf("expected 1 read error, got %d", s.ReadErrors.Load())
	}
}

func TestSnapshotComputesTotals(t *testing.T) {
	s := NewStats()
	s.RecordRead(4096, 1000, true)
	s.RecordWrite(8192, 2000, true)
	s.RecordUnmap(0, 500, true)

	snap := s.Snapshot()
	if snap.TotalOps != 3 {
		t.Fatalf("expected 3 total ops, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 4096+8192 {
		t.Fatalf("expected %d total bytes, got %d", 4096+8192, snap.TotalBytes)
	}
}

func TestMaxQueueDepthTracksPeak(t *testing.T) {
	s := NewStats()
	s.RecordQueueDepth(3)
	s.RecordQueueDepth(7)
	s.RecordQueueDepth(2)

	if s.MaxQueueDepth.Load() != 7 {
		t.Fatalf("expected max queue depth 7, got %d", s.MaxQueueDepth.Load())
	}
}

func TestPercentileMonotonic(t *testing.T) {
	s := NewStats()
	for i := 0; i < 100; i++ {
		s.RecordRead(4096, uint64(i+1)*1000, true)
	}
	snap := s.Snapshot()
	if !(snap.LatencyP50Ns <= snap.LatencyP99Ns && snap.LatencyP99Ns <= snap.LatencyP999Ns) {
		t.Fatalf("expected p50 <= p99 <= p999, got %d %d %d", snap.LatencyP50Ns, snap.LatencyP99Ns, snap.LatencyP999Ns)
	}
}

func TestResetClearsCounters(t *testing.T) {
	s := NewStats()
	s.RecordRead(4096, 1000, true)
	s.Reset()
	if s.ReadOps.Load() != 0 {
		t.Fatalf("expected 0 read ops after reset, got %d", s.ReadOps.Load())
	}
}

func TestStatsObserverRecordsToUnderlyingStats(t *testing.T) {
	s := NewStats()
	var obs Observer = NewStatsObserver(s)
	obs.ObserveRead(4096, 1000, true)
	if s.ReadOps.Load() != 1 {
		t.Fatalf("expected observer to record into Stats, got %d ops", s.ReadOps.Load())
	}
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs Observer = NoOpObserver{}
	obs.ObserveRead(4096, 1000, true)
	obs.ObserveQueueDepth(5)
}
