// Package metrics wires the bdev core's Stats/Observer machinery into
// Prometheus, the way an operator scraping a real SPDK target would expect:
// one Collector per bdev exposing per-operation counters, byte counters,
// error counters, and a latency histogram, registered under
// github.com/prometheus/client_golang.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	bdev "github.com/go-bdev/bdev"
)

// Collector implements prometheus.Collector and bdev.Observer at once: I/O
// completions recorded against it (via bdev.Bdev.SetObserver) are exported
// on the next Prometheus scrape.
type Collector struct {
	bdevName string

	ops     *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	errors  *prometheus.CounterVec
	latency *prometheus.HistogramVec
	qdepth  prometheus.Gauge
}

// latencyBucketsSeconds mirrors bdev.LatencyBuckets (nanoseconds) converted
// to the seconds unit Prometheus histograms conventionally use.
var latencyBucketsSeconds = func() []float64 {
	b := make([]float64, len(bdev.LatencyBuckets))
	for i, ns := range bdev.LatencyBuckets {
		b[i] = float64(ns) / 1e9
	}
	return b
}()

// NewCollector creates a Collector for one bdev, labeling every metric with
// bdevName.
func NewCollector(bdevName string) *Collector {
	return &Collector{
		bdevName: bdevName,
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bdev",
			Name:      "ops_total",
			Help:      "Total I/O operations completed, by type.",
		}, []string{"bdev", "op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bdev",
			Name:      "bytes_total",
			Help:      "Total bytes transferred, by type.",
		}, []string{"bdev", "op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bdev",
			Name:      "errors_total",
			Help:      "Total I/O errors, by type.",
		}, []string{"bdev", "op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bdev",
			Name:      "io_latency_seconds",
			Help:      "I/O completion latency, by type.",
			Buckets:   latencyBucketsSeconds,
		}, []string{"bdev", "op"}),
		qdepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "bdev",
			Name:        "queue_depth",
			Help:        "Most recently sampled queue depth.",
			ConstLabels: prometheus.Labels{"bdev": bdevName},
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ops.Describe(ch)
	c.bytes.Describe(ch)
	c.errors.Describe(ch)
	c.latency.Describe(ch)
	c.qdepth.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ops.Collect(ch)
	c.bytes.Collect(ch)
	c.errors.Collect(ch)
	c.latency.Collect(ch)
	c.qdepth.Collect(ch)
}

func (c *Collector) observe(op string, bytes, latencyNs uint64, success bool) {
	c.ops.WithLabelValues(c.bdevName, op).Inc()
	if bytes > 0 {
		c.bytes.WithLabelValues(c.bdevName, op).Add(float64(bytes))
	}
	if !success {
		c.errors.WithLabelValues(c.bdevName, op).Inc()
	}
	c.latency.WithLabelValues(c.bdevName, op).Observe(float64(latencyNs) / 1e9)
}

// ObserveRead implements bdev.Observer.
func (c *Collector) ObserveRead(bytes, latencyNs uint64, success bool) {
	c.observe("read", bytes, latencyNs, success)
}

// ObserveWrite implements bdev.Observer.
func (c *Collector) ObserveWrite(bytes, latencyNs uint64, success bool) {
	c.observe("write", bytes, latencyNs, success)
}

// ObserveUnmap implements bdev.Observer.
func (c *Collector) ObserveUnmap(bytes, latencyNs uint64, success bool) {
	c.observe("unmap", bytes, latencyNs, success)
}

// ObserveFlush implements bdev.Observer.
func (c *Collector) ObserveFlush(latencyNs uint64, success bool) {
	c.observe("flush", 0, latencyNs, success)
}

// ObserveCompare implements bdev.Observer.
func (c *Collector) ObserveCompare(latencyNs uint64, success bool) {
	c.observe("compare", 0, latencyNs, success)
}

// ObserveNvmeIO implements bdev.Observer.
func (c *Collector) ObserveNvmeIO(latencyNs uint64, success bool) {
	c.observe("nvme_io", 0, latencyNs, success)
}

// ObserveQueueDepth implements bdev.Observer.
func (c *Collector) ObserveQueueDepth(depth uint32) {
	c.qdepth.Set(float64(depth))
}

var _ bdev.Observer = (*Collector)(nil)
var _ prometheus.Collector = (*Collector)(nil)

// Register builds a Collector for b, wires it in as b's Observer, and
// registers it with reg (typically prometheus.DefaultRegisterer).
func Register(reg prometheus.Registerer, b *bdev.Bdev) (*Collector, error) {
	c := NewCollector(b.Name())
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	b.SetObserver(c)
	return c, nil
}
