package stream

import "github.com/sabouaram/vsock/vsocket"

// reapPending implements spec.md §4.3.5: fired 1 second after a pending
// child is created. It runs on its own goroutine (time.AfterFunc), so it
// takes the listener-first lock order itself rather than relying on the
// worker's single-threaded dispatch.
func (w *Worker) reapPending(child, listenerSock *vsocket.Socket) {
	listenerSock.Lock()
	defer listenerSock.Unlock()
	child.Lock()
	defer child.Unlock()

	stillPending := listenerSock.Own.IsPending(child)

	if stillPending || child.Rejected {
		listenerSock.Own.PendingRemove(child) // no-op if already dequeued (rejected case)
		w.Registry.ConnectedRemove(child.Remote, child.Local, child)
		child.SetState(vsocket.StateFree)
	}
	// else: accepted and not rejected — the user owns it now, nothing to
	// clean up beyond the listener back-reference below.

	child.ClearListener()
	listenerSock.Unref() // invariant 7's reference, held since handleFreshRequest
}
