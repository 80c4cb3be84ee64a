package stream

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// handleConnected implements spec.md §4.3.4 for packets the dispatcher
// could not consume on its inline fast path — SHUTDOWN, RST, and notify
// packets arriving while a user call owns the socket.
func (w *Worker) handleConnected(pkt wire.Packet, sock *vsocket.Socket) {
	switch pkt.Type {
	case wire.TypeShutdown:
		sock.PeerShutdown |= pkt.Mask
		sock.Wake()

	case wire.TypeReset:
		w.handlePeerReset(sock)

	case wire.TypeWrote:
		sock.Notifier.OnWrote(pkt.Written)
		sock.Wake()
	case wire.TypeRead:
		sock.Notifier.OnRead(pkt.Consumed)
		sock.Wake()
	case wire.TypeWaitingRead:
		sock.Notifier.OnWaiting(wire.WaitRead)
	case wire.TypeWaitingWrite:
		sock.Notifier.OnWaiting(wire.WaitWrite)

	default:
		w.reply(wire.Reset(pkt.Src, pkt.Dst))
		sock.Err = errcode.EConnReset.Unix()
		sock.Wake()
	}
}

// handlePeerReset folds an RST into the shutdown mask and, with no data
// left to read, tears the connection down to DISCONNECTING (spec.md
// §4.3.4: "Treat like clean close for data still unread").
func (w *Worker) handlePeerReset(sock *vsocket.Socket) {
	sock.PeerShutdown = wire.ShutRD | wire.ShutWR
	sock.Err = errcode.EConnReset.Unix()
	if sock.QP == nil || sock.QP.BufReady() == 0 {
		sock.SetState(vsocket.StateDisconnecting)
	}
	sock.Wake()
}
