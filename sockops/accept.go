package sockops

import (
	"context"

	"github.com/sabouaram/vsock/errcode"
	"github.com/sabouaram/vsock/vsocket"
)

// Accept implements spec.md §4.4 accept: requires LISTEN, blocks until the
// accept queue is non-empty or ctx expires/cancels, then dequeues a child.
// If the listener has recorded an error (e.g. it was released out from
// under a blocked accept()), the child is marked rejected and its
// ownership-transfer reference is dropped; the reaper finishes the
// teardown. Otherwise the child is handed to the caller, who now owns it.
func (o *Ops) Accept(ctx context.Context, listenerSock *vsocket.Socket, nonblocking bool) (*vsocket.Socket, error) {
	if listenerSock.State() != vsocket.StateListen {
		return nil, errcode.EInval.Unix()
	}

	if nonblocking && !listenerSock.Own.HasAcceptable() {
		return nil, errcode.EAgain.Unix()
	}

	var done <-chan struct{}
	if ctx != nil {
		done = ctx.Done()
	}

	child, ok := listenerSock.Own.WaitAccept(done)
	if !ok {
		if ctx != nil && ctx.Err() != nil {
			return nil, waitErr(ctx, errcode.EAgain.Unix())
		}
		return nil, errcode.EInval.Unix() // listener's accept queue was closed (release())
	}

	listenerSock.Lock()
	listenerErr := listenerSock.Err
	listenerSock.Unlock()

	if listenerErr != nil {
		child.Lock()
		child.Rejected = true
		child.Unlock()
		child.Unref()
		return nil, listenerErr
	}
	return child, nil
}
