package stream

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// handleConnecting implements spec.md §4.3.3, the client side of the
// handshake: it runs for any socket in CONNECTING that is not itself a
// listener (a server-side pending child in CONNECTING is routed through
// handleListener/handlePendingReceive instead, since it is found via its
// listener's pending list rather than the connected index).
func (w *Worker) handleConnecting(pkt wire.Packet, sock *vsocket.Socket) {
	switch pkt.Type {
	case wire.TypeNegotiate:
		w.handleClientNegotiate(pkt, sock)
	case wire.TypeAttach:
		if sock.QP == nil || pkt.Handle != sock.QP.Handle() {
			w.reply(wire.Reset(pkt.Src, pkt.Dst))
			return
		}
		sock.SetState(vsocket.StateConnected)
		w.observeHandshake(sock.ConnectStart)
		sock.Wake()
	case wire.TypeReset:
		sock.Err = errcode.EConnReset.Unix()
		w.rollbackConnecting(sock)
	default:
		// "anything else: protocol error; reply RST, wake waiter with EPROTO"
		// — EPROTO is internal-only and surfaces as ECONNRESET (spec.md §7).
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		sock.Err = errcode.EConnReset.Unix()
		w.rollbackConnecting(sock)
	}
}

// handleClientNegotiate allocates the queue pair once, per Open Question
// (b) of spec.md §9: a CONNECTING client that has already negotiated
// (sock.QP != nil) rejects a second NEGOTIATE, preserving the original's
// behavior rather than re-negotiating.
func (w *Worker) handleClientNegotiate(pkt wire.Packet, sock *vsocket.Socket) {
	if sock.QP != nil || pkt.Size < sock.Min || pkt.Size > sock.Max {
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		return
	}

	attachSub, err := w.Transport.Subscribe(transport.EventPeerAttach, wire.Handle{}, func(ev transport.Event, h wire.Handle) {
		w.enqueueEvent(transport.EventPeerAttach, sock, h)
	})
	if err != nil {
		w.failConnecting(sock, err)
		return
	}
	detachSub, err := w.Transport.Subscribe(transport.EventPeerDetach, wire.Handle{}, func(ev transport.Event, h wire.Handle) {
		w.enqueueEvent(transport.EventPeerDetach, sock, h)
	})
	if err != nil {
		w.Transport.Unsubscribe(attachSub)
		w.failConnecting(sock, err)
		return
	}

	qp, err := w.Transport.Alloc(pkt.Src.CID, pkt.Size, pkt.Size, transport.FlagNone)
	if err != nil {
		w.Transport.Unsubscribe(attachSub)
		w.Transport.Unsubscribe(detachSub)
		w.failConnecting(sock, err)
		return
	}

	sock.AttachSub = attachSub
	sock.DetachSub = detachSub
	sock.QP = qp
	sock.ProduceSize = pkt.Size
	sock.ConsumeSize = pkt.Size

	// Invariant 2: a CONNECTING client is connected-indexed once NEGOTIATE
	// is accepted, ahead of the ATTACH that actually flips it to CONNECTED.
	w.Registry.ConnectedInsert(sock.Remote, sock.Local, sock)

	if err := w.Transport.Send(wire.Offer(pkt.Dst, pkt.Src, qp.Handle())); err != nil {
		w.failConnecting(sock, err)
		return
	}
}

func (w *Worker) failConnecting(sock *vsocket.Socket, err error) {
	sock.Err = errcode.Translate(err).Unix()
	w.rollbackConnecting(sock)
}

// rollbackConnecting unwinds a CONNECTING client back to UNCONNECTED,
// releasing whatever partial handshake state had accumulated.
func (w *Worker) rollbackConnecting(sock *vsocket.Socket) {
	if sock.AttachSub.Valid() {
		w.Transport.Unsubscribe(sock.AttachSub)
		sock.AttachSub = transport.SubID{}
	}
	if sock.DetachSub.Valid() {
		w.Transport.Unsubscribe(sock.DetachSub)
		sock.DetachSub = transport.SubID{}
	}
	if sock.QP != nil {
		_ = sock.QP.Detach()
		sock.QP = nil
	}
	w.Registry.ConnectedRemove(sock.Remote, sock.Local, sock) // no-op if never inserted
	sock.SetState(vsocket.StateUnconnected)
	sock.Wake()
}
