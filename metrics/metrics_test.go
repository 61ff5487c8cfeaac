package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCountsReadsAndErrors(t *testing.T) {
	c := NewCollector("test0")
	c.ObserveRead(4096, 1000, true)
	c.ObserveRead(0, 2000, false)

	if got := testutil.ToFloat64(c.ops.WithLabelValues("test0", "read")); got != 2 {
		t.Fatalf("expected 2 read ops, got %v", got)
	}
	if got := testutil.ToFloat64(c.bytes.WithLabelValues("test0", "read")); got != 4096 {
		t.Fatalf("expected 4096 read bytes, got %v", got)
	}
	if got := testutil.ToFloat64(c.errors.WithLabelValues("test0", "read")); got != 1 {
		t.Fatalf("expected 1 read error, got %v", got)
	}
}

func TestCollectorQueueDepthGauge(t *testing.T) {
	c := NewCollector("test0")
	c.ObserveQueueDepth(5)
	c.ObserveQueueDepth(12)

	if got := testutil.ToFloat64(c.qdepth); got != 12 {
		t.Fatalf("expected gauge to reflect the latest sample (12), got %v", got)
	}
}

func TestCollectorFlushAndCompareDoNotRecordBytes(t *testing.T) {
	c := NewCollector("test0")
	c.ObserveFlush(500, true)
	c.ObserveCompare(500, false)

	if got := testutil.ToFloat64(c.bytes.WithLabelValues("test0", "flush")); got != 0 {
		t.Fatalf("expected no byte counter for flush, got %v", got)
	}
	if got := testutil.ToFloat64(c.errors.WithLabelValues("test0", "compare")); got != 1 {
		t.Fatalf("expected 1 compare error, got %v", got)
	}
}
