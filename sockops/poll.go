package sockops

import (
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// PollMask mirrors the subset of POSIX poll(2) event bits spec.md §4.4's
// poll operation reports.
type PollMask uint32

const (
	PollIn PollMask = 1 << iota
	PollOut
	PollErr
	PollHup
)

// Poll implements spec.md §4.4 poll: a non-blocking snapshot of readiness,
// computed straight off socket state rather than any separate wait queue
// (the caller is expected to re-poll after a Socket.Changed wakeup, same
// as every other blocking operation here).
func (o *Ops) Poll(sock *vsocket.Socket) PollMask {
	sock.Lock()
	defer sock.Unlock()

	var mask PollMask
	if sock.Err != nil {
		mask |= PollErr
	}

	switch sock.State() {
	case vsocket.StateListen:
		if sock.Own.HasAcceptable() {
			mask |= PollIn
		}

	case vsocket.StateConnected:
		if sock.QP != nil && sock.QP.BufReady() > 0 {
			mask |= PollIn
		}
		if sock.LocalShutdown&wire.ShutRD != 0 || sock.PeerShutdown&wire.ShutWR != 0 {
			// A shut-down read side reports readable too: the next recvmsg
			// returns immediately, either with data or EOF (0, nil).
			mask |= PollIn
		}
		if sock.PeerShutdown.Both() {
			mask |= PollHup
		}
		if sock.LocalShutdown&wire.ShutWR == 0 && sock.PeerShutdown&wire.ShutRD == 0 &&
			sock.QP != nil && sock.QP.FreeSpace() > 0 {
			mask |= PollOut
		}

	case vsocket.StateDisconnecting:
		mask |= PollIn | PollHup

	case vsocket.StateUnconnected:
		if sock.Kind == vsocket.TypeDgram {
			mask |= PollOut
		}

	case vsocket.StateFree:
		mask |= PollErr | PollHup
	}

	return mask
}
