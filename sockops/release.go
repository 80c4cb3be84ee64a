package sockops

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// Release implements spec.md §4.4 release (close): remove the socket from
// whatever tables still hold it, sever a CONNECTED peer, and recursively
// release every child still sitting on a LISTEN socket's accept queue.
// DGRAM sockets are never table-indexed (spec.md §4.1), so releasing one
// is just the final Unref.
func (o *Ops) Release(sock *vsocket.Socket) error {
	sock.Lock()
	state := sock.State()

	switch state {
	case vsocket.StateListen:
		own := sock.Own
		sock.Err = errcode.EInval.Unix() // wakes any blocked accept() with an error
		sock.Wake()
		sock.Unlock()

		for _, child := range own.Close() {
			_ = o.Release(child)
		}

	case vsocket.StateConnected, vsocket.StateConnecting:
		local, remote := sock.Local, sock.Remote
		sock.LocalShutdown = wire.ShutRD | wire.ShutWR
		sock.Wake()
		sock.Unlock()

		if state == vsocket.StateConnected {
			if err := o.Transport.Send(wire.Shutdown(local, remote, wire.ShutRD|wire.ShutWR)); err != nil {
				o.Log.WithSocket(sock.ID).Warn("shutdown notify on release failed: " + err.Error())
			}
		}
		o.Registry.ConnectedRemove(remote, local, sock)

	default:
		sock.Unlock()
	}

	if sock.Kind == vsocket.TypeStream {
		if sock.Local != (wire.Addr{}) {
			o.Registry.BindRemove(sock.Local, sock)
		} else {
			o.Registry.UntrackUnbound(sock)
		}
	}

	sock.Unref()
	return nil
}
