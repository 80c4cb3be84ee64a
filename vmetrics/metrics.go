// Package vmetrics exposes the handful of prometheus gauges/counters/
// histograms worth watching on a running Family: queue depth, pending-ack
// backlog, and handshake latency. It is grounded on the
// prometheus.Collector/metrics-struct-plus-Add pattern of
// other_examples/1dd0a5ff_rfratto-ckit__internal-memberlistgrpc-transport.go.go
// (a *metrics struct registered once, exposing prometheus.GaugeFunc values
// backed by live accessors rather than counters this package mutates
// directly).
package vmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sampler is whatever a Family exposes so Metrics can read live gauge
// values on scrape, instead of this package duplicating state Family
// already owns.
type Sampler interface {
	// QueueDepth returns the number of items currently buffered in the
	// worker's deferred-work channel.
	QueueDepth() int
	// PendingBacklog returns the current/max ack backlog across every live
	// listener this Family tracks.
	PendingBacklog() (current, max uint32)
}

// Metrics bundles every collector this module registers. Construct one per
// Family and register it with a prometheus.Registerer.
type Metrics struct {
	QueueDepth       prometheus.GaugeFunc
	PendingBacklog   prometheus.GaugeFunc
	HandshakeLatency prometheus.Histogram

	StreamSockets prometheus.GaugeFunc
	DgramSockets  prometheus.GaugeFunc
}

// CountSource is the subset of family.Family Metrics reads gauges from.
type CountSource interface {
	Counts() (streams, dgrams uint64)
}

// New constructs the collector set for one Family/Worker pair.
func New(s Sampler, c CountSource) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vsock",
			Name:      "worker_queue_depth",
			Help:      "Number of deferred work items currently buffered in the stream worker's queue.",
		}, func() float64 { return float64(s.QueueDepth()) }),

		PendingBacklog: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vsock",
			Name:      "listener_pending_backlog",
			Help:      "Current half-open (unacknowledged) connection backlog, summed across every listener.",
		}, func() float64 {
			cur, _ := s.PendingBacklog()
			return float64(cur)
		}),

		HandshakeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vsock",
			Name:      "handshake_duration_seconds",
			Help:      "Time from REQUEST sent/received to the socket reaching CONNECTED.",
			Buckets:   prometheus.DefBuckets,
		}),

		StreamSockets: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vsock",
			Name:      "stream_sockets_live",
			Help:      "Number of live STREAM sockets created and not yet released.",
		}, func() float64 {
			streams, _ := c.Counts()
			return float64(streams)
		}),

		DgramSockets: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "vsock",
			Name:      "dgram_sockets_live",
			Help:      "Number of live DGRAM sockets created and not yet released.",
		}, func() float64 {
			_, dgrams := c.Counts()
			return float64(dgrams)
		}),
	}
	return m
}

// ObserveHandshake records one completed handshake's latency. Intended to
// be wired directly as a family.Family.SetHandshakeObserver callback.
func (m *Metrics) ObserveHandshake(d time.Duration) {
	m.HandshakeLatency.Observe(d.Seconds())
}

// MustRegister registers every collector in m with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.QueueDepth,
		m.PendingBacklog,
		m.HandshakeLatency,
		m.StreamSockets,
		m.DgramSockets,
	)
}
