package stream

import (
	"time"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// reaperDelay is the fixed 1-second pending-socket reaper delay of
// spec.md §4.3.1/§4.3.5.
const reaperDelay = time.Second

// handleListener is the entry point for any packet routed to a LISTEN
// socket (spec.md §4.3.1): either an existing pending child exists for the
// packet's source, in which case the packet is really for that child
// (§4.3.2), or this is a fresh REQUEST.
func (w *Worker) handleListener(pkt wire.Packet, listenerSock *vsocket.Socket) {
	if child, ok := listenerSock.Own.PendingFind(pkt.Src); ok {
		child.Lock()
		w.handlePendingReceive(pkt, child, listenerSock)
		child.Unlock()
		return
	}
	w.handleFreshRequest(pkt, listenerSock)
}

func (w *Worker) handleFreshRequest(pkt wire.Packet, listenerSock *vsocket.Socket) {
	if pkt.Type != wire.TypeRequest || pkt.Size == 0 {
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		return
	}

	if listenerSock.Own.BacklogFull() {
		// "reply RST with ECONNREFUSED semantics" (spec.md §4.3.1): the RST
		// packet carries no errno of its own; the client's handleConnecting
		// records ECONNRESET on it, which is what its connect() returns.
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		return
	}

	child := vsocket.New(w.NextSocketID(), vsocket.TypeStream, w.Transport, listenerSock.Trusted)
	child.InitDefaultBounds()
	child.Local = pkt.Dst
	child.Remote = pkt.Src

	min, def, max := listenerSock.Min, listenerSock.Default, listenerSock.Max
	chosen := def
	if pkt.Size >= min && pkt.Size <= max {
		chosen = pkt.Size
	}

	if err := w.Transport.Send(wire.Negotiate(pkt.Dst, pkt.Src, chosen)); err != nil {
		w.Log.WithSocket(child.ID).Warn("negotiate send failed: " + err.Error())
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		child.Unref() // drop the creator's implicit reference; nothing else holds one
		return
	}

	child.ProduceSize = chosen
	child.ConsumeSize = chosen
	child.ConnectStart = time.Now()
	child.SetState(vsocket.StateConnecting)

	listenerSock.Ref() // invariant 7: a pending server socket holds a reference to its listener
	listenerSock.Own.PendingInsert(child)
	child.Unref() // drop the creator's implicit reference; the pending-list membership now holds the only one
	child.ArmReaper(reaperDelay, func() { w.reapPending(child, listenerSock) })
}

// handlePendingReceive implements spec.md §4.3.2: the expected packet is
// OFFER{handle}; anything else destroys the child.
func (w *Worker) handlePendingReceive(pkt wire.Packet, child, listenerSock *vsocket.Socket) {
	if pkt.Type != wire.TypeOffer {
		w.destroyPendingChild(pkt, child, listenerSock)
		return
	}

	detachSub, err := w.Transport.Subscribe(transport.EventPeerDetach, pkt.Handle, func(ev transport.Event, h wire.Handle) {
		w.enqueueEvent(transport.EventPeerDetach, child, h)
	})
	if err != nil {
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		w.destroyPendingChild(pkt, child, listenerSock)
		return
	}
	child.DetachSub = detachSub

	flags := transport.FlagAttachOnly
	if pkt.Src.CID == w.Transport.ContextID() {
		flags |= transport.FlagLocal
	}

	qp, err := w.Transport.Attach(pkt.Src.CID, pkt.Handle, flags)
	if err != nil {
		w.Transport.Unsubscribe(detachSub)
		child.DetachSub = transport.SubID{}
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		w.destroyPendingChild(pkt, child, listenerSock)
		return
	}
	child.QP = qp

	if err := w.Transport.Send(wire.Attach(pkt.Dst, pkt.Src, pkt.Handle)); err != nil {
		w.Log.WithSocket(child.ID).Warn("attach send failed: " + err.Error())
		w.Transport.Unsubscribe(detachSub)
		child.DetachSub = transport.SubID{}
		_ = qp.Detach()
		child.QP = nil
		child.SetState(vsocket.StateUnconnected)
		listenerSock.Own.PendingRemove(child)
		child.CancelReaper() // the listener reference is dropped here, not by the reaper
		listenerSock.Unref()
		return
	}

	child.SetState(vsocket.StateConnected)
	w.observeHandshake(child.ConnectStart)
	w.Registry.ConnectedInsert(child.Remote, child.Local, child)
	// The reaper stays armed past acceptance (spec.md §4.3.5): it is what
	// eventually drops the listener reference either way, and finishes
	// teardown if accept() later rejects this child.
	if err := listenerSock.Own.Accept(child); err != nil {
		w.Log.WithSocket(child.ID).Warn("accept queue full: " + err.Error())
	}
	child.Wake()
	listenerSock.Wake() // wakes any accept() waiter blocked on the listener
}

// destroyPendingChild tears down a pending child that failed its
// handshake, for any reason other than a successful OFFER (spec.md
// §4.3.2: "Anything else (including RST) destroys the child").
func (w *Worker) destroyPendingChild(pkt wire.Packet, child, listenerSock *vsocket.Socket) {
	if pkt.Type != wire.TypeReset {
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
	}
	if child.DetachSub.Valid() {
		w.Transport.Unsubscribe(child.DetachSub)
		child.DetachSub = transport.SubID{}
	}
	if child.QP != nil {
		_ = child.QP.Detach()
		child.QP = nil
	}
	w.Registry.ConnectedRemove(child.Remote, child.Local, child) // no-op if never inserted
	listenerSock.Own.PendingRemove(child)
	child.CancelReaper()
	child.Err = errcode.EConnReset.Unix()
	child.SetState(vsocket.StateFree)
	listenerSock.Unref() // drop invariant 7's reference to the listener
}
