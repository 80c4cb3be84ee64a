package sockops

import (
	"context"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// RecvMsg implements spec.md §4.4 recvmsg (stream). target is the number
// of bytes the caller wants before returning: len(buf) under MSG_WAITALL,
// or just enough to make progress otherwise. A target at or past the
// socket's consume_size can never be satisfied by one buffer and fails
// fast with ENOMEM. It blocks until target bytes are ready, the peer's
// write side shuts down, or an error/cancellation interrupts the wait; it
// then dequeues whatever is available (up to len(buf)), acking the peer
// with a READ packet, and tears the socket down to UNCONNECTED once the
// peer has shut down and the buffer has drained.
func (o *Ops) RecvMsg(ctx context.Context, sock *vsocket.Socket, buf []byte, waitAll, peek, nonblocking bool) (int, error) {
	sock.Lock()
	state := sock.State()
	if state != vsocket.StateConnected && state != vsocket.StateDisconnecting {
		sock.Unlock()
		return 0, errcode.ENotConn.Unix()
	}
	qp := sock.QP
	consumeSize := sock.ConsumeSize
	sock.Unlock()

	target := uint64(1)
	if waitAll {
		target = uint64(len(buf))
	}
	if len(buf) == 0 {
		target = 0
	}
	if target >= consumeSize {
		return 0, errcode.ENoMem.Unix()
	}

	peerDone := func() bool { return sock.PeerShutdown&wire.ShutWR != 0 }
	ready := func() bool { return qp.BufReady() >= target || peerDone() }

	sock.Lock()
	for sock.Err == nil && !ready() {
		if nonblocking {
			sock.Unlock()
			return 0, errcode.EAgain.Unix()
		}
		if err := waitFor(ctx, sock, ready, errcode.EAgain.Unix()); err != nil {
			sock.Unlock()
			return 0, err
		}
	}
	if sock.Err != nil {
		err := sock.Err
		sock.Unlock()
		return 0, err
	}
	sock.Unlock()

	// With the peer's write side shut and nothing buffered, this is EOF:
	// DequeueV would block on the empty queue, so it is skipped.
	n := 0
	if qp.BufReady() > 0 {
		var err error
		n, err = qp.DequeueV(ctx, [][]byte{buf}, peek)
		if err != nil {
			return 0, errcode.Translate(err).Unix()
		}
	}

	if !peek && n > 0 {
		if err := o.Transport.Send(wire.Packet{Src: sock.Local, Dst: sock.Remote, Type: wire.TypeRead, Consumed: uint32(n)}); err != nil {
			o.Log.WithSocket(sock.ID).Warn("read notify send failed: " + err.Error())
		}
	}

	sock.Lock()
	if peerDone() && qp.BufReady() == 0 && sock.State() == vsocket.StateConnected {
		sock.SetState(vsocket.StateUnconnected)
		sock.Wake()
	}
	sock.Unlock()

	return n, nil
}
