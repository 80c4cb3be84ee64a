// Package stream implements the control receive dispatcher and the
// per-socket stream state machine of spec.md §4.2/§4.3: the code that
// turns an inbound REQUEST/NEGOTIATE/OFFER/ATTACH/RST/SHUTDOWN packet into
// socket-table mutations, reply packets, and woken waiters.
package stream

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/vsock/registry"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// workItem is a heap-allocated deferred job: a copy of the packet plus the
// one socket reference the dispatcher's lookup obtained (spec.md §4.2:
// "copied into a heap-allocated work item together with a held socket
// reference"). The worker releases that reference when it is done.
type workItem struct {
	pkt  wire.Packet
	sock *vsocket.Socket
}

// eventItem is a deferred transport event (PEER_ATTACH or PEER_DETACH; a
// RESUMED event arrives as one PEER_DETACH item per connected socket, see
// OnResumed). Routing these through the same single-threaded queue as
// workItem is what resolves spec.md §9 Open Question (a): QP_RESUMED (and
// any other event) can no longer race a concurrent worker-driven state
// mutation for the same socket, because both now serialize through one
// goroutine.
type eventItem struct {
	kind transport.Event
	sock *vsocket.Socket
	h    wire.Handle
}

// Worker is the single-threaded deferred-work queue of spec.md §4.2/§5.
// One Worker serves every socket of its Family, which trivially satisfies
// "all deferred work for one socket goes to the same single-threaded
// worker queue, no ordering promised across unrelated sockets" — there is
// only one queue, so per-socket ordering is automatic and no contention
// scheme across sockets is needed. Lifecycle is managed with
// golang.org/x/sync/errgroup, the teacher's idiom for a supervised
// goroutine with a clean shutdown signal.
type Worker struct {
	Registry  *registry.Registry
	Transport transport.Provider
	Log       vlog.Logger

	// HandshakeObserver, if set, is called with the REQUEST/NEGOTIATE-to-
	// CONNECTED latency of every completed handshake, client and server
	// side alike (vmetrics wires this to a prometheus.Histogram).
	HandshakeObserver func(time.Duration)

	items        chan workItem
	events       chan eventItem
	nextSocketID uint64

	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewWorker constructs a Worker with a bounded backlog; queueDepth mirrors
// the teacher's convention of sizing channel-backed queues rather than
// leaving them unbounded.
func NewWorker(reg *registry.Registry, tp transport.Provider, log vlog.Logger, queueDepth int) *Worker {
	if queueDepth <= 0 {
		queueDepth = 256
	}
	return &Worker{
		Registry:  reg,
		Transport: tp,
		Log:       log,
		items:     make(chan workItem, queueDepth),
		events:    make(chan eventItem, queueDepth),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (w *Worker) Start(ctx context.Context) {
	if w.group != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	g, runCtx := errgroup.WithContext(runCtx)
	w.cancel = cancel
	w.group = g
	g.Go(func() error {
		w.loop(runCtx)
		return nil
	})
}

// Stop signals the worker to exit and waits for it to drain in-flight work.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.group != nil {
		_ = w.group.Wait()
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-w.items:
			w.process(item)
		case ev := <-w.events:
			w.dispatchEvent(ev)
		}
	}
}

// enqueue hands off ownership of item's reference to the worker. The
// caller must not touch sock again without taking its own reference.
func (w *Worker) enqueue(pkt wire.Packet, sock *vsocket.Socket) {
	select {
	case w.items <- workItem{pkt: pkt, sock: sock}:
	default:
		// Backlog full: fail safe per spec.md §4.2's "must not hang" concern
		// rather than block the bottom-half caller.
		w.Log.WithSocket(sock.ID).Warn("deferred work queue full, dropping packet")
		sock.Unref()
	}
}

// enqueueEvent schedules an event callback to run on the worker goroutine
// instead of the transport's own callback goroutine.
func (w *Worker) enqueueEvent(kind transport.Event, sock *vsocket.Socket, h wire.Handle) {
	select {
	case w.events <- eventItem{kind: kind, sock: sock, h: h}:
	default:
		w.Log.WithSocket(sock.ID).Warn("event queue full, dropping event")
	}
}

func (w *Worker) dispatchEvent(ev eventItem) {
	switch ev.kind {
	case transport.EventPeerAttach:
		w.onPeerAttach(ev.sock, ev.h)
	case transport.EventPeerDetach:
		w.onPeerDetach(ev.sock, ev.h)
	}
}

// QueueDepth reports the number of deferred work items currently buffered,
// exposed to vmetrics as a gauge.
func (w *Worker) QueueDepth() int { return len(w.items) }

// NextSocketID hands out the monotonically increasing ids spec.md §3
// assigns to every socket, including pending children minted by the
// listener handler (spec.md §4.3.1).
func (w *Worker) NextSocketID() uint64 {
	return atomic.AddUint64(&w.nextSocketID, 1)
}

// process runs one deferred work item under the target socket's lock, per
// spec.md §4.2: "The worker takes the per-socket lock and dispatches by
// state." Listener-owned sockets and plain client/connected sockets share
// this single entry point; the dispatch key is (Own != nil, State()).
func (w *Worker) process(item workItem) {
	sock := item.sock
	defer sock.Unref()

	sock.Lock()
	defer sock.Unlock()

	switch {
	case sock.Own != nil && sock.State() == vsocket.StateListen:
		w.handleListener(item.pkt, sock)
	case sock.Own == nil && sock.State() == vsocket.StateConnecting:
		w.handleConnecting(item.pkt, sock)
	case sock.Own == nil && sock.State() == vsocket.StateConnected:
		w.handleConnected(item.pkt, sock)
	default:
		// "any other state -> reply RST and discard (the peer must not hang
		// if we closed between dispatch and handling)" — spec.md §4.2.
		w.reply(wire.Reset(item.pkt.Src, item.pkt.Dst))
	}
}

// observeHandshake reports a completed handshake's elapsed time, if an
// observer is wired and start was ever recorded.
func (w *Worker) observeHandshake(start time.Time) {
	if w.HandshakeObserver == nil || start.IsZero() {
		return
	}
	w.HandshakeObserver(time.Since(start))
}

// reply sends pkt and logs, but never propagates a transport-send failure
// up — replies are best-effort by construction (there is no one left to
// retry to if the send itself fails).
func (w *Worker) reply(pkt wire.Packet) {
	if err := w.Transport.Send(pkt); err != nil {
		w.Log.WithField("type", pkt.Type.String()).Warn("reply send failed: " + err.Error())
	}
}
