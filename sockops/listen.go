package sockops

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// Listen implements spec.md §4.4 listen: requires STREAM, state
// UNCONNECTED and already bound; records max_ack_backlog and transitions
// to LISTEN.
func (o *Ops) Listen(sock *vsocket.Socket, backlog uint32) error {
	sock.Lock()
	defer sock.Unlock()

	if sock.Kind != vsocket.TypeStream {
		return errcode.EOpNotSupp.Unix()
	}
	if sock.State() != vsocket.StateUnconnected {
		return errcode.EInval.Unix()
	}
	if sock.Local == (wire.Addr{}) {
		return errcode.EInval.Unix()
	}

	sock.Own = vsocket.NewListener(backlog)
	sock.Own.Owner = sock
	sock.SetState(vsocket.StateListen)
	return nil
}
