// Package sockops implements the user-facing socket operations of
// spec.md §4.4: bind, listen, connect, accept, sendmsg, recvmsg, shutdown,
// poll, release, setsockopt/getsockopt, and getname. Every blocking
// operation here runs in "user context" in spec.md §5's terms: it may
// sleep on Socket.Changed and is interruptible via ctx.
package sockops

import (
	"context"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/registry"
	"github.com/sabouaram/vsock/stream"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/vlog"
	"github.com/sabouaram/vsock/vsocket"
)

// Ops bundles the collaborators every socket operation needs: the global
// tables, the worker (for sending handshake packets and minting child
// ids), the transport, and a logger. One Ops instance serves every socket
// created against a given transport, mirroring the single address-family
// registration of spec.md §6.
type Ops struct {
	Registry  *registry.Registry
	Worker    *stream.Worker
	Transport transport.Provider
	Log       vlog.Logger
}

// New constructs a fresh unbound stream or dgram socket with one implicit
// reference, tracking STREAM sockets in the registry's unbound bucket per
// spec.md §4.1.
func (o *Ops) New(kind vsocket.Type, trusted bool) *vsocket.Socket {
	s := vsocket.New(o.Worker.NextSocketID(), kind, o.Transport, trusted)
	s.InitDefaultBounds()
	if kind == vsocket.TypeStream {
		o.Registry.TrackUnbound(s)
	}
	return s
}

// waitFor blocks on sock.Changed until cond() is satisfied, ctx is done,
// or sock.Err becomes non-nil. It re-examines in the order spec.md §5
// requires: error, then the caller-supplied condition, then cancellation.
// The caller must hold sock locked (via sock.Lock()) on entry and exit.
//
// ctx cancellation is delivered to a sleeping Cond.Wait by a single
// watcher registered once per call (context.AfterFunc), rather than
// polling, mirroring the "interruptible sleep" spec.md §5 describes for a
// pending signal.
func waitFor(ctx context.Context, sock *vsocket.Socket, cond func() bool, timeoutErrno error) error {
	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			sock.Lock()
			sock.Wake()
			sock.Unlock()
		})
		defer stop()
	}

	for sock.Err == nil && !cond() {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return waitErr(ctx, timeoutErrno)
			default:
			}
		}
		sock.Changed.Wait()
	}
	if sock.Err != nil {
		return sock.Err
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return waitErr(ctx, timeoutErrno)
		default:
		}
	}
	return nil
}

// waitErr translates a cancelled/expired context into the POSIX code
// spec.md §5 names: EINTR for explicit cancellation (a pending signal), or
// timeoutErrno for an expired deadline — callers pass ETIMEDOUT (connect)
// or EAGAIN (send/recv/accept) per spec.md §5's per-operation convention.
func waitErr(ctx context.Context, timeoutErrno error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return timeoutErrno
	}
	return errcode.EIntr.Unix()
}
