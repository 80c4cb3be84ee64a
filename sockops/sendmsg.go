package sockops

import (
	"context"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// SendMsg implements spec.md §4.4 sendmsg (stream): requires CONNECTED and
// the local write side still open. In a loop, it waits for produce space,
// enqueues as much of data as fits, and tells the peer via a WROTE packet;
// it stops on full length written, a shutdown/error, or (non-blocking)
// zero progress. The return value is the total bytes written, which may be
// short of len(data).
func (o *Ops) SendMsg(ctx context.Context, sock *vsocket.Socket, data []byte, nonblocking bool) (int, error) {
	sock.Lock()
	if sock.State() != vsocket.StateConnected {
		sock.Unlock()
		return 0, errcode.ENotConn.Unix()
	}
	if sock.LocalShutdown&wire.ShutWR != 0 || sock.PeerShutdown&wire.ShutRD != 0 {
		sock.Unlock()
		return 0, errcode.EPipe.Unix()
	}
	qp := sock.QP
	sock.Unlock()

	written := 0
	for written < len(data) {
		sock.Lock()
		open := func() bool {
			return sock.State() != vsocket.StateConnected || sock.LocalShutdown&wire.ShutWR != 0 || sock.PeerShutdown&wire.ShutRD != 0
		}
		for sock.Err == nil && !open() && qp.FreeSpace() == 0 {
			if nonblocking {
				sock.Unlock()
				return shortWrite(written)
			}
			if err := waitFor(ctx, sock, func() bool { return qp.FreeSpace() > 0 || open() }, errcode.EAgain.Unix()); err != nil {
				sock.Unlock()
				if written > 0 {
					return written, nil
				}
				return 0, err
			}
		}
		if sock.Err != nil {
			err := sock.Err
			sock.Unlock()
			if written > 0 {
				return written, nil
			}
			return 0, err
		}
		if open() {
			sock.Unlock()
			if written > 0 {
				return written, nil
			}
			return 0, errcode.EPipe.Unix()
		}
		sock.Unlock()

		n, err := qp.EnqueueV(ctx, [][]byte{data[written:]})
		if err != nil {
			if written > 0 {
				return written, nil
			}
			return 0, errcode.Translate(err).Unix()
		}
		if n == 0 {
			return shortWrite(written)
		}
		written += n

		if err := o.Transport.Send(wire.Packet{Src: sock.Local, Dst: sock.Remote, Type: wire.TypeWrote, Written: uint32(n)}); err != nil {
			o.Log.WithSocket(sock.ID).Warn("wrote notify send failed: " + err.Error())
		}
	}
	return written, nil
}

func shortWrite(written int) (int, error) {
	if written > 0 {
		return written, nil
	}
	return 0, errcode.EAgain.Unix()
}
