// Package notifier implements the flow-control notify packets spec.md §3
// leaves "opaque here; delegated to the notifier module": WROTE, READ,
// WAITING_READ, WAITING_WRITE. It records a running estimate of the
// peer's freed buffer space (from READ) and whether the peer reported
// itself waiting. It has no poll-in/poll-out hooks, and neither sendmsg
// nor poll reads this state: both take space and readiness straight from
// the queue pair.
package notifier

import (
	"sync"

	"github.com/sabouaram/vsock/wire"
)

// Notifier is owned one-per-connected-socket. All methods are safe for
// concurrent use from the worker (on packet receipt) and from sendmsg/
// recvmsg (on local progress).
type Notifier struct {
	mu sync.Mutex

	peerFreeSpace uint64 // last WROTE/READ-derived estimate of the peer's free produce space
	peerWaitingRd bool
	peerWaitingWr bool

	localWaitingRd bool
	localWaitingWr bool
}

func New() *Notifier { return &Notifier{} }

// OnWrote records that the peer produced `written` more bytes into the
// queue we consume from.
func (n *Notifier) OnWrote(written uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_ = written // data availability itself is tracked by the queue pair; this
	// packet's only job is to let a peer that polled WAITING_READ know there
	// is now something to read, which callers do via Broadcast on the
	// socket's Changed cond after calling OnWrote.
}

// OnRead records that the peer consumed `consumed` more bytes from the
// queue we produce into, freeing that much additional space.
func (n *Notifier) OnRead(consumed uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peerFreeSpace += uint64(consumed)
}

// OnWaiting records that the peer is blocked waiting for read or write
// progress on its side.
func (n *Notifier) OnWaiting(mode wire.WaitMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch mode {
	case wire.WaitRead:
		n.peerWaitingRd = true
	case wire.WaitWrite:
		n.peerWaitingWr = true
	}
}

// NoteLocalWaiting records a local wait in the given direction. Nothing
// in sockops calls it, and no WAITING_* notice is sent from here.
func (n *Notifier) NoteLocalWaiting(mode wire.WaitMode) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch mode {
	case wire.WaitRead:
		n.localWaitingRd = true
	case wire.WaitWrite:
		n.localWaitingWr = true
	}
}

// ClearLocalWaiting resets the local-waiting flags once progress is made.
func (n *Notifier) ClearLocalWaiting() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.localWaitingRd = false
	n.localWaitingWr = false
}
