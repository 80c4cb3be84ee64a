package stream

import (
	"github.com/sabouaram/vsock/registry"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// Dispatcher is the bottom-half entry point of spec.md §4.2: it runs in
// the transport's Recv callback goroutine, which stands in for interrupt
// context and must not block.
type Dispatcher struct {
	Registry  *registry.Registry
	Worker    *Worker
	Transport transport.Provider
	Log       vlog.Logger
}

// NewDispatcher wires a Dispatcher to the given worker and registers it as
// the transport's inbound callback.
func NewDispatcher(reg *registry.Registry, w *Worker, tp transport.Provider, log vlog.Logger) *Dispatcher {
	d := &Dispatcher{Registry: reg, Worker: w, Transport: tp, Log: log}
	tp.Recv(d.Deliver)
	_, _ = tp.Subscribe(transport.EventResumed, wire.Handle{}, func(ev transport.Event, h wire.Handle) {
		w.OnResumed()
	})
	return d
}

// Deliver classifies one inbound control packet and either consumes it
// inline, enqueues it on the worker, or replies RST/drops it, per spec.md
// §4.2.
func (d *Dispatcher) Deliver(pkt wire.Packet) {
	// Validation: "source cid must be a real participant (hypervisor and
	// well-known non-socket cids are rejected)". Packets arrive here as
	// typed wire.Packet values (memtransport hands them over without
	// encoding them), so there is no length to check; the
	// resource-id-matches-this-protocol check is the transport's addressing
	// concern (transport/memtransport only ever delivers packets sent on
	// this protocol's reserved resource id, so there is nothing left to
	// re-validate here).
	if pkt.Src.WellKnown() {
		d.Log.WithField("src", pkt.Src.String()).Warn("dropping control packet from well-known cid")
		return
	}

	sock, ok := d.Registry.Lookup(pkt.Src, pkt.Dst)
	if !ok {
		if pkt.Type != wire.TypeReset {
			d.Worker.reply(wire.Reset(pkt.Src, pkt.Dst))
		}
		return
	}

	// Restricted-source rule (spec.md §4.2): a source cid the transport
	// marks restricted may only reach a trusted destination socket.
	if _, restricted := d.Transport.PrivFlags(pkt.Src.CID); restricted && !sock.Trusted {
		sock.Unref()
		return
	}

	if !sock.Owned() && sock.State() == vsocket.StateConnected && pkt.IsNotify() {
		d.deliverNotify(pkt, sock)
		sock.Unref()
		return
	}

	d.Worker.enqueue(pkt, sock)
}

// deliverNotify is the fast (inline) path of spec.md §4.2 routing rule
// (a)-(c): a pure flow-control notify packet against an unowned CONNECTED
// socket is applied directly, without the worker round-trip.
func (d *Dispatcher) deliverNotify(pkt wire.Packet, sock *vsocket.Socket) {
	switch pkt.Type {
	case wire.TypeWrote:
		sock.Notifier.OnWrote(pkt.Written)
	case wire.TypeRead:
		sock.Notifier.OnRead(pkt.Consumed)
	case wire.TypeWaitingRead:
		sock.Notifier.OnWaiting(wire.WaitRead)
	case wire.TypeWaitingWrite:
		sock.Notifier.OnWaiting(wire.WaitWrite)
	}
	sock.Wake()
}
