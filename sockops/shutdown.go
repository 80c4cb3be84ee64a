package sockops

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// How names the POSIX shutdown(2) direction argument.
type How int

const (
	ShutRD How = iota
	ShutWR
	ShutRDWR
)

func (h How) mask() (wire.ShutMask, error) {
	switch h {
	case ShutRD:
		return wire.ShutRD, nil
	case ShutWR:
		return wire.ShutWR, nil
	case ShutRDWR:
		return wire.ShutRD | wire.ShutWR, nil
	default:
		return 0, errcode.EInval.Unix()
	}
}

// Shutdown implements spec.md §4.4 shutdown: ORs the requested direction
// into the local shutdown mask and, if the socket is CONNECTED, tells the
// peer with a SHUTDOWN packet so its own recvmsg/sendmsg loops unblock.
func (o *Ops) Shutdown(sock *vsocket.Socket, how How) error {
	mask, err := how.mask()
	if err != nil {
		return err
	}

	sock.Lock()
	sock.LocalShutdown |= mask
	connected := sock.State() == vsocket.StateConnected
	local, remote := sock.Local, sock.Remote
	sock.Wake()
	sock.Unlock()

	if connected {
		if err := o.Transport.Send(wire.Shutdown(local, remote, mask)); err != nil {
			return errcode.Translate(err).Unix()
		}
	}
	return nil
}
