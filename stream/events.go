package stream

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// onPeerAttach handles a transport-level QP_PEER_ATTACH event on a
// CONNECTING client. The explicit ATTACH control packet is what actually
// drives the transition to CONNECTED (handleConnecting); this event is the
// transport confirming the shared memory side is live, so here it only
// wakes anything blocked waiting on the queue pair directly.
//
// Every caller of onPeerAttach/onPeerDetach reaches it through
// Worker.dispatchEvent, never directly from a transport callback goroutine
// — see eventItem and Worker.enqueueEvent. That is what resolves spec.md §9
// Open Question (a): QP_RESUMED (and every other event) is serialized
// through the same single worker goroutine that drives ordinary packet
// dispatch, so it cannot race a concurrent state-machine mutation for the
// same socket.
func (w *Worker) onPeerAttach(sock *vsocket.Socket, h wire.Handle) {
	sock.Lock()
	defer sock.Unlock()
	sock.Wake()
}

// onPeerDetach handles QP_PEER_DETACH, which can land on three different
// kinds of socket: a server-side pending child (subscribed in
// handlePendingReceive before attach), a CONNECTING client (subscribed in
// handleClientNegotiate), or a CONNECTED socket (spec.md scenario S5). In
// every case it is treated like an abortive peer departure.
func (w *Worker) onPeerDetach(sock *vsocket.Socket, h wire.Handle) {
	sock.Lock()
	defer sock.Unlock()

	switch sock.State() {
	case vsocket.StateConnecting:
		if l := sock.ListenerRef(); l != nil && l.Owner != nil {
			w.destroyPendingChild(wire.Packet{Type: wire.TypeReset}, sock, l.Owner)
			return
		}
		sock.Err = errcode.EConnReset.Unix()
		w.rollbackConnecting(sock)

	case vsocket.StateConnected:
		w.handlePeerReset(sock)
	}
}

// OnResumed handles QP_RESUMED (spec.md scenario S6): every socket in the
// connected index is treated as peer-detached, one at a time, through the
// same serialized event queue. Wired once, at dispatcher construction, as
// a wildcard-handle RESUMED subscription (see NewDispatcher).
func (w *Worker) OnResumed() {
	w.Registry.RangeConnected(func(sock *vsocket.Socket) {
		w.enqueueEvent(transport.EventPeerDetach, sock, wire.Handle{})
	})
}
