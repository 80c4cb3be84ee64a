package sockops

import (
	"context"
	"time"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// Connect implements spec.md §4.4 connect (stream): auto-binds an unbound
// socket, rejects LISTEN/DISCONNECTING with EINVAL, a connect already in
// flight with EALREADY, and an already-CONNECTED socket with EISCONN.
// Sends REQUEST{default_size} and transitions to CONNECTING; blocks (or
// returns EINPROGRESS for a non-blocking caller) until the handshake
// settles or ctx expires/cancels.
func (o *Ops) Connect(ctx context.Context, sock *vsocket.Socket, remote wire.Addr, nonblocking bool) error {
	if remote.WellKnown() {
		return errcode.ENetUnreach.Unix()
	}

	sock.Lock()

	switch sock.State() {
	case vsocket.StateListen, vsocket.StateDisconnecting:
		sock.Unlock()
		return errcode.EInval.Unix()
	case vsocket.StateConnecting:
		sock.Unlock()
		return errcode.EAlready.Unix()
	case vsocket.StateConnected:
		sock.Unlock()
		return errcode.EIsConn.Unix()
	}

	if sock.Local == (wire.Addr{}) {
		sock.Unlock()
		if err := o.Bind(sock, wire.Addr{CID: wire.CIDAny, Port: wire.PortAny}); err != nil {
			return err
		}
		sock.Lock()
	}

	sock.Remote = remote
	sock.Err = nil
	sock.ConnectStart = time.Now()
	sock.SetState(vsocket.StateConnecting)

	if err := o.Transport.Send(wire.Request(sock.Local, remote, sock.Default)); err != nil {
		sock.SetState(vsocket.StateUnconnected)
		sock.Unlock()
		return errcode.Translate(err).Unix()
	}

	if nonblocking {
		sock.Unlock()
		return errcode.EInProgress.Unix()
	}
	defer sock.Unlock()

	if err := waitFor(ctx, sock, func() bool { return sock.State() != vsocket.StateConnecting }, errcode.ETimedOut.Unix()); err != nil {
		if sock.State() == vsocket.StateConnecting {
			sock.SetState(vsocket.StateUnconnected)
		}
		return err
	}
	if sock.State() != vsocket.StateConnected {
		return errcode.EConnReset.Unix()
	}
	return nil
}
