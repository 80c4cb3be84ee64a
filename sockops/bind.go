package sockops

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// Bind implements spec.md §4.4 bind: fails if already bound, resolves
// CID_ANY to the local context, rejects any other non-local cid with
// EADDRNOTAVAIL, requires Trusted to claim a reserved port, and scans for
// a free port on PORT_ANY.
func (o *Ops) Bind(sock *vsocket.Socket, want wire.Addr) error {
	sock.Lock()
	defer sock.Unlock()

	if sock.Local != (wire.Addr{}) {
		return errcode.EInval.Unix()
	}

	cid := want.CID
	switch {
	case cid == wire.CIDAny:
		cid = o.Transport.ContextID()
	case cid != o.Transport.ContextID():
		return errcode.EAddrNotAvail.Unix()
	}

	if want.Port != wire.PortAny {
		addr := wire.Addr{CID: cid, Port: want.Port}
		if addr.Reserved() && !sock.Trusted {
			return errcode.EAccess.Unix()
		}
		if !o.Registry.BindInsertIfAbsent(addr, sock) {
			return errcode.EAddrInUse.Unix()
		}
		sock.Local = addr
		return nil
	}

	for i := uint32(0); i < wire.MaxPortRetries; i++ {
		addr := wire.Addr{CID: cid, Port: wire.LastReservedPort + 1 + i}
		if o.Registry.BindInsertIfAbsent(addr, sock) {
			sock.Local = addr
			return nil
		}
	}
	return errcode.EAddrNotAvail.Unix()
}
