package vsocket

import (
	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/wire"
)

// PendingInsert links child into l's pending list, taking the list's
// reference (spec.md invariant 1, 6). Always called with l.mu held before
// child.mu, per the listener-first lock order of spec.md §5.
func (l *Listener) PendingInsert(child *Socket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	child.Ref()
	elem := l.pending.PushBack(child)
	child.SetListener(l)
	child.pendEntry = &pendingEntry{sock: child, elem: elem}
	l.ackBacklog++
}

// PendingFind scans the pending list for a child whose Remote matches
// src, implementing spec.md §4.3.1's "If an existing pending child exists
// for source s, delegate to it".
func (l *Listener) PendingFind(src wire.Addr) (*Socket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for e := l.pending.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Socket)
		if s.Remote == src {
			return s, true
		}
	}
	return nil, false
}

// PendingRemove unlinks child from the pending list and drops the
// membership reference. No-op if child is not currently pending.
func (l *Listener) PendingRemove(child *Socket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if child.pendEntry == nil {
		return
	}
	l.pending.Remove(child.pendEntry.elem)
	child.pendEntry = nil
	if l.ackBacklog > 0 {
		l.ackBacklog--
	}
	child.Unref()
}

// IsPending reports whether child is still linked into l's pending list.
func (l *Listener) IsPending(child *Socket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return child.pendEntry != nil
}

// Backlog reports the current/maximum ack backlog (spec.md §4.3.1).
func (l *Listener) Backlog() (current, max uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ackBacklog, l.maxAckBacklog
}

// BacklogFull reports whether a fresh REQUEST must be refused.
func (l *Listener) BacklogFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ackBacklog >= l.maxAckBacklog
}

// Accept moves child from pending to the accept queue, waking any
// accept() waiter (spec.md §4.3.2). The accept channel itself holds the
// membership reference that PendingRemove would otherwise have dropped —
// ownership transfers from the pending list to the accept queue without
// a Ref/Unref pair.
func (l *Listener) Accept(child *Socket) error {
	l.mu.Lock()
	if child.pendEntry != nil {
		l.pending.Remove(child.pendEntry.elem)
		child.pendEntry = nil
		if l.ackBacklog > 0 {
			l.ackBacklog--
		}
	}
	l.mu.Unlock()

	select {
	case l.accept <- child:
		return nil
	default:
		// Accept queue is full: the backlog check in spec.md §4.3.1 should
		// have prevented this, but fail safe rather than block the worker.
		child.Unref()
		return errcode.ENoMem.Unix()
	}
}

// WaitAccept blocks (respecting ctxDone) until a child is available, the
// listener channel is closed, or ctxDone fires.
func (l *Listener) WaitAccept(ctxDone <-chan struct{}) (*Socket, bool) {
	select {
	case s, ok := <-l.accept:
		return s, ok
	case <-ctxDone:
		return nil, false
	}
}

// HasAcceptable is the non-blocking test used by poll() to check for
// POLLIN without consuming the queue's only entry on a peek.
func (l *Listener) HasAcceptable() bool {
	return len(l.accept) > 0
}

// Close closes the accept channel, waking every blocked WaitAccept with
// ok=false, and drains whatever children were still queued so release()
// can recursively release them (spec.md §4.4 release: "drop all sockets
// still on the accept queue").
func (l *Listener) Close() []*Socket {
	l.mu.Lock()
	defer l.mu.Unlock()

	close(l.accept)
	var drained []*Socket
	for child := range l.accept {
		drained = append(drained, child)
	}
	return drained
}
