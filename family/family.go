// Package family is the address-family registration surface of spec.md §6:
// a socket-ops vtable (the methods every socket op dispatches through) plus
// the module-wide counters spec.md's "registration lock" protects. It is
// the Go-native analogue of af_vsock.c's struct proto_ops/net_proto_family
// registration — there is no real kernel address-family table to register
// into here, so Family simply bundles one Ops instance per transport and
// hands out Sockets of either flavor.
package family

import (
	"context"
	"sync"
	"time"

	"github.com/sabouaram/vsock/registry"
	"github.com/sabouaram/vsock/sockops"
	"github.com/sabouaram/vsock/stream"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vsocket"
)

// SockType mirrors the two SOCK_* constants spec.md §4.4's create() op
// accepts.
type SockType int

const (
	SockStream SockType = iota
	SockDgram
)

// Family bundles one Ops/Registry/Worker/Dispatcher quartet wired against a
// single transport.Provider, plus the counters regMu protects: the number
// of live sockets of each kind, tracked the way the teacher's own
// connection-count gauges are (see vmetrics).
type Family struct {
	Ops *sockops.Ops

	regMu         sync.Mutex
	streamSockets uint64
	dgramSockets  uint64

	worker     *stream.Worker
	dispatcher *stream.Dispatcher
}

// New wires a Family against tp: a Registry, a Worker (not yet running;
// Start launches it on its own goroutine via errgroup), and a Dispatcher
// subscribed to the transport's inbound datagram stream and RESUMED event.
func New(tp transport.Provider, log vlog.Logger, queueDepth int) *Family {
	reg := registry.New()
	w := stream.NewWorker(reg, tp, log.WithField("component", "stream.worker"), queueDepth)
	d := stream.NewDispatcher(reg, w, tp, log.WithField("component", "stream.dispatcher"))

	return &Family{
		Ops: &sockops.Ops{
			Registry:  reg,
			Worker:    w,
			Transport: tp,
			Log:       log.WithField("component", "sockops"),
		},
		worker:     w,
		dispatcher: d,
	}
}

// Start launches the worker's dispatch loop. Stop tears it down. As with
// stream.Worker, a second Start is a no-op.
func (f *Family) Start(ctx context.Context) { f.worker.Start(ctx) }
func (f *Family) Stop()                     { f.worker.Stop() }

// Create implements spec.md §4.4's "Address-family create(type)": allocate
// a fresh socket of the requested kind, bumping the live-count gauge
// regMu guards.
func (f *Family) Create(typ SockType) *vsocket.Socket {
	f.regMu.Lock()
	switch typ {
	case SockStream:
		f.streamSockets++
	case SockDgram:
		f.dgramSockets++
	}
	f.regMu.Unlock()

	kind := vsocket.TypeStream
	if typ == SockDgram {
		kind = vsocket.TypeDgram
	}
	return f.Ops.New(kind, false)
}

// Counts reports the live socket counts regMu guards, exposed for
// vmetrics gauges.
func (f *Family) Counts() (streams, dgrams uint64) {
	f.regMu.Lock()
	defer f.regMu.Unlock()
	return f.streamSockets, f.dgramSockets
}

// QueueDepth satisfies vmetrics.Sampler: the worker's current deferred
// work backlog.
func (f *Family) QueueDepth() int { return f.worker.QueueDepth() }

// SetHandshakeObserver wires a vmetrics.Metrics.HandshakeLatency-shaped
// callback to every completed handshake, client and server side alike.
func (f *Family) SetHandshakeObserver(obs func(time.Duration)) {
	f.worker.HandshakeObserver = obs
}

// PendingBacklog satisfies vmetrics.Sampler: the ack backlog summed across
// every bound socket currently in LISTEN.
func (f *Family) PendingBacklog() (current, max uint32) {
	f.Ops.Registry.RangeBound(func(s *vsocket.Socket) {
		if s.State() != vsocket.StateListen || s.Own == nil {
			return
		}
		c, m := s.Own.Backlog()
		current += c
		max += m
	})
	return current, max
}

// Release wraps Ops.Release and decrements the matching live-count gauge.
func (f *Family) Release(sock *vsocket.Socket) error {
	err := f.Ops.Release(sock)

	f.regMu.Lock()
	if sock.Kind == vsocket.TypeStream && f.streamSockets > 0 {
		f.streamSockets--
	} else if sock.Kind == vsocket.TypeDgram && f.dgramSockets > 0 {
		f.dgramSockets--
	}
	f.regMu.Unlock()

	return err
}
