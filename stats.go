package bdev

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets are the histogram bucket boundaries in nanoseconds, 1us to
// 10s log-spaced, matching the granularity NVMe and RAM modules both care
// about (tail latency shows up well before 10s, floor noise before 1us).
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Stats tracks per-bdev operational counters: the statistics component of
// the bdev runtime (spec §1 component D).
type Stats struct {
	ReadOps    atomic.Uint64
	WriteOps   atomic.Uint64
	UnmapOps   atomic.Uint64
	FlushOps   atomic.Uint64
	CompareOps atomic.Uint64
	NvmeIOOps  atomic.Uint64

	ReadBytes  atomic.Uint64
	WriteBytes atomic.Uint64
	UnmapBytes atomic.Uint64

	ReadErrors    atomic.Uint64
	WriteErrors   atomic.Uint64
	UnmapErrors   atomic.Uint64
	FlushErrors   atomic.Uint64
	CompareErrors atomic.Uint64
	NvmeIOErrors  atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewStats creates a new, running Stats instance.
func NewStats() *Stats {
	s := &Stats{}
	s.StartTime.Store(time.Now().UnixNano())
	return s
}

// RecordRead records a read operation.
func (s *Stats) RecordRead(bytes uint64, latencyNs uint64, success bool) {
	s.ReadOps.Add(1)
	if success {
		s.ReadBytes.Add(bytes)
	} else {
		s.ReadErrors.Add(1)
	}
	s.recordLatency(latencyNs)
}

// RecordWrite records a write operation.
func (s *Stats) RecordWrite(bytes uint64, latencyNs uint64, success bool) {
	s.WriteOps.Add(1)
	if success {
		s.WriteBytes.Add(bytes)
	} else {
		s.WriteErrors.Add(1)
	}
	s.recordLatency(latencyNs)
}

// RecordUnmap records an unmap/write-zeroes operation.
func (s *Stats) RecordUnmap(bytes uint64, latencyNs uint64, success bool) {
	s.UnmapOps.Add(1)
	if success {
		s.UnmapBytes.Add(bytes)
	} else {
		s.UnmapErrors.Add(1)
	}
	s.recordLatency(latencyNs)
}

// RecordFlush records a flush operation.
func (s *Stats) RecordFlush(latencyNs uint64, success bool) {
	s.FlushOps.Add(1)
	if !success {
		s.FlushErrors.Add(1)
	}
	s.recordLatency(latencyNs)
}

// RecordCompare records a compare / compare-and-write operation.
func (s *Stats) RecordCompare(latencyNs uint64, success bool) {
	s.CompareOps.Add(1)
	if !success {
		s.CompareErrors.Add(1)
	}
	s.recordLatency(latencyNs)
}

// RecordNvmeIO records an NVMe admin/IO passthrough command.
func (s *Stats) RecordNvmeIO(latencyNs uint64, success bool) {
	s.NvmeIOOps.Add(1)
	if !success {
		s.NvmeIOErrors.Add(1)
	}
	s.recordLatency(latencyNs)
}

// RecordQueueDepth records a queue-depth sample.
func (s *Stats) RecordQueueDepth(depth uint32) {
	s.QueueDepthTotal.Add(uint64(depth))
	s.QueueDepthCount.Add(1)
	for {
		current := s.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if s.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (s *Stats) recordLatency(latencyNs uint64) {
	s.TotalLatencyNs.Add(latencyNs)
	s.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			s.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the bdev as stopped for uptime accounting.
func (s *Stats) Stop() {
	s.StopTime.Store(time.Now().UnixNano())
}

// StatsSnapshot is a point-in-time read of Stats, with derived rates and
// latency percentiles computed.
type StatsSnapshot struct {
	ReadOps, WriteOps, UnmapOps, FlushOps, CompareOps, NvmeIOOps uint64

	ReadBytes, WriteBytes, UnmapBytes uint64

	ReadErrors, WriteErrors, UnmapErrors, FlushErrors, CompareErrors, NvmeIOErrors uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns, LatencyP99Ns, LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	ReadIOPS, WriteIOPS           float64
	ReadBandwidth, WriteBandwidth float64
	TotalOps, TotalBytes          uint64
	ErrorRate                     float64
}

// Snapshot computes a StatsSnapshot.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		ReadOps: s.ReadOps.Load(), WriteOps: s.WriteOps.Load(),
		UnmapOps: s.UnmapOps.Load(), FlushOps: s.FlushOps.Load(),
		CompareOps: s.CompareOps.Load(), NvmeIOOps: s.NvmeIOOps.Load(),
		ReadBytes: s.ReadBytes.Load(), WriteBytes: s.WriteBytes.Load(), UnmapBytes: s.UnmapBytes.Load(),
		ReadErrors: s.ReadErrors.Load(), WriteErrors: s.WriteErrors.Load(),
		UnmapErrors: s.UnmapErrors.Load(), FlushErrors: s.FlushErrors.Load(),
		CompareErrors: s.CompareErrors.Load(), NvmeIOErrors: s.NvmeIOErrors.Load(),
		MaxQueueDepth: s.MaxQueueDepth.Load(),
	}

	snap.TotalOps = snap.ReadOps + snap.WriteOps + snap.UnmapOps + snap.FlushOps + snap.CompareOps + snap.NvmeIOOps
	snap.TotalBytes = snap.ReadBytes + snap.WriteBytes + snap.UnmapBytes

	if c := s.QueueDepthCount.Load(); c > 0 {
		snap.AvgQueueDepth = float64(s.QueueDepthTotal.Load()) / float64(c)
	}

	opCount := s.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = s.TotalLatencyNs.Load() / opCount
	}

	start := s.StartTime.Load()
	if stop := s.StopTime.Load(); stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}

	if snap.UptimeNs > 0 {
		secs := float64(snap.UptimeNs) / 1e9
		snap.ReadIOPS = float64(snap.ReadOps) / secs
		snap.WriteIOPS = float64(snap.WriteOps) / secs
		snap.ReadBandwidth = float64(snap.ReadBytes) / secs
		snap.WriteBandwidth = float64(snap.WriteBytes) / secs
	}

	totalErrors := snap.ReadErrors + snap.WriteErrors + snap.UnmapErrors + snap.FlushErrors + snap.CompareErrors + snap.NvmeIOErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = s.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = s.percentile(0.50)
		snap.LatencyP99Ns = s.percentile(0.99)
		snap.LatencyP999Ns = s.percentile(0.999)
	}

	return snap
}

// percentile estimates the latency at the given percentile via linear
// interpolation between histogram buckets.
func (s *Stats) percentile(p float64) uint64 {
	total := s.OpCount.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)

	var prevBucket uint64
	for i, bucket := range LatencyBuckets {
		count := s.LatencyBuckets[i].Load()
		if count >= target {
			var prevCount uint64
			if i > 0 {
				prevCount = s.LatencyBuckets[i-1].Load()
			}
			if count == prevCount {
				return bucket
			}
			frac := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(frac*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters, for test isolation.
func (s *Stats) Reset() {
	s.ReadOps.Store(0)
	s.WriteOps.Store(0)
	s.UnmapOps.Store(0)
	s.FlushOps.Store(0)
	s.CompareOps.Store(0)
	s.NvmeIOOps.Store(0)
	s.ReadBytes.Store(0)
	s.WriteBytes.Store(0)
	s.UnmapBytes.Store(0)
	s.ReadErrors.Store(0)
	s.WriteErrors.Store(0)
	s.UnmapErrors.Store(0)
	s.FlushErrors.Store(0)
	s.CompareErrors.Store(0)
	s.NvmeIOErrors.Store(0)
	s.QueueDepthTotal.Store(0)
	s.QueueDepthCount.Store(0)
	s.MaxQueueDepth.Store(0)
	s.TotalLatencyNs.Store(0)
	s.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		s.LatencyBuckets[i].Store(0)
	}
	s.StartTime.Store(time.Now().UnixNano())
	s.StopTime.Store(0)
}

// Observer allows pluggable stats collection, implemented by the metrics
// package's Prometheus collector in addition to the built-in Stats.
type Observer interface {
	ObserveRead(bytes uint64, latencyNs uint64, success bool)
	ObserveWrite(bytes uint64, latencyNs uint64, success bool)
	ObserveUnmap(bytes uint64, latencyNs uint64, success bool)
	ObserveFlush(latencyNs uint64, success bool)
	ObserveCompare(latencyNs uint64, success bool)
	ObserveNvmeIO(latencyNs uint64, success bool)
	ObserveQueueDepth(depth uint32)
}

// NoOpObserver discards everything; used when no collector is wired.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRead(uint64, uint64, bool)  {}
func (NoOpObserver) ObserveWrite(uint64, uint64, bool) {}
func (NoOpObserver) ObserveUnmap(uint64, uint64, bool) {}
func (NoOpObserver) ObserveFlush(uint64, bool)         {}
func (NoOpObserver) ObserveCompare(uint64, bool)       {}
func (NoOpObserver) ObserveNvmeIO(uint64, bool)        {}
func (NoOpObserver) ObserveQueueDepth(uint32)          {}

// StatsObserver implements Observer by recording into a Stats instance.
type StatsObserver struct {
	stats *Stats
}

// NewStatsObserver creates an Observer backed by s.
func NewStatsObserver(s *Stats) *StatsObserver {
	return &StatsObserver{stats: s}
}

func (o *StatsObserver) ObserveRead(bytes, latencyNs uint64, success bool) {
	o.stats.RecordRead(bytes, latencyNs, success)
}
func (o *StatsObserver) ObserveWrite(bytes, latencyNs uint64, success bool) {
	o.stats.RecordWrite(bytes, latencyNs, success)
}
func (o *StatsObserver) ObserveUnmap(bytes, latencyNs uint64, success bool) {
	o.stats.RecordUnmap(bytes, latencyNs, success)
}
func (o *StatsObserver) ObserveFlush(latencyNs uint64, success bool) {
	o.stats.RecordFlush(latencyNs, success)
}
func (o *StatsObserver) ObserveCompare(latencyNs uint64, success bool) {
	o.stats.RecordCompare(latencyNs, success)
}
func (o *StatsObserver) ObserveNvmeIO(latencyNs uint64, success bool) {
	o.stats.RecordNvmeIO(latencyNs, success)
}
func (o *StatsObserver) ObserveQueueDepth(depth uint32) {
	o.stats.RecordQueueDepth(depth)
}

var (
	_ Observer = (*StatsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)
