package sockops

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// GetName implements getname (SPEC_FULL.md §10, supplemental from
// original_source/vsock-only/linux/af_vsock.c's vsock_getname): peer
// reports the remote address and requires CONNECTED; local reports the
// bound address, or the zero Addr for a never-bound socket.
func (o *Ops) GetName(sock *vsocket.Socket, peer bool) (wire.Addr, error) {
	sock.Lock()
	defer sock.Unlock()

	if peer {
		if sock.State() != vsocket.StateConnected {
			return wire.Addr{}, errcode.ENotConn.Unix()
		}
		return sock.Remote, nil
	}
	return sock.Local, nil
}
