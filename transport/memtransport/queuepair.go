package memtransport

import (
	"context"
	"sync"

	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/wire"
)

// ringQueuePair is a pair of fixed-capacity byte ring buffers shared by
// both Attach-ed endpoints: a's produce queue is b's consume queue and
// vice versa, exactly as spec.md describes a queue pair. Only one
// ringQueuePair object backs both sides; each side gets a *sideView that
// swaps which ring is "produce" and which is "consume".
type ringQueuePair struct {
	handle wire.Handle

	mu       sync.Mutex
	cond     *sync.Cond
	aToB     *ring // written by side A, read by side B
	bToA     *ring // written by side B, read by side A
	detached bool
}

func newRingQueuePair(h wire.Handle, produceSize, consumeSize uint64) *ringQueuePair {
	rqp := &ringQueuePair{
		handle: h,
		aToB:   newRing(produceSize),
		bToA:   newRing(consumeSize),
	}
	rqp.cond = sync.NewCond(&rqp.mu)
	return rqp
}

// sideView is the QueuePair a single endpoint sees: produce is its write
// ring, consume is its read ring.
type sideView struct {
	rqp     *ringQueuePair
	produce *ring
	consume *ring
}

func (v *sideView) Handle() wire.Handle { return v.rqp.handle }

func (v *sideView) EnqueueV(ctx context.Context, iov [][]byte) (int, error) {
	total := 0
	for _, b := range iov {
		total += len(b)
	}

	v.rqp.mu.Lock()
	defer v.rqp.mu.Unlock()

	// Wait only for some free space, then write as much as fits: the
	// bounded, possibly short enqueue sockops.SendMsg loops over.
	for total > 0 && v.produce.free() == 0 && !v.rqp.detached {
		if err := waitLocked(ctx, v.rqp.cond); err != nil {
			return 0, err
		}
	}
	if v.rqp.detached {
		return 0, transport.ErrHandleUnknown
	}

	n := 0
	for _, b := range iov {
		n += v.produce.write(b)
	}
	v.rqp.cond.Broadcast()
	return n, nil
}

func (v *sideView) DequeueV(ctx context.Context, iov [][]byte, peek bool) (int, error) {
	total := 0
	for _, b := range iov {
		total += len(b)
	}

	v.rqp.mu.Lock()
	defer v.rqp.mu.Unlock()

	for v.consume.used() == 0 && !v.rqp.detached {
		if err := waitLocked(ctx, v.rqp.cond); err != nil {
			return 0, err
		}
	}

	n := 0
	remaining := total
	for _, b := range iov {
		if remaining <= 0 {
			break
		}
		want := len(b)
		if want > remaining {
			want = remaining
		}
		got := v.consume.read(b[:want], peek)
		n += got
		remaining -= got
		if got < want {
			break
		}
	}
	if !peek {
		v.rqp.cond.Broadcast()
	}
	return n, nil
}

func (v *sideView) BufReady() uint64  { v.rqp.mu.Lock(); defer v.rqp.mu.Unlock(); return v.consume.used() }
func (v *sideView) FreeSpace() uint64 { v.rqp.mu.Lock(); defer v.rqp.mu.Unlock(); return v.produce.free() }

func (v *sideView) Detach() error {
	v.rqp.mu.Lock()
	v.rqp.detached = true
	v.rqp.cond.Broadcast()
	v.rqp.mu.Unlock()
	return nil
}

func waitLocked(ctx context.Context, cond *sync.Cond) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		case <-done:
		}
	}()
	cond.Wait()
	close(done)
	return ctx.Err()
}

// Alloc creates a fresh queue pair and registers it on the network under a
// freshly minted handle, from the allocating node's own context (this side
// is "A").
func (n *Node) Alloc(peerCID uint32, produceSize, consumeSize uint64, flags transport.AllocFlags) (transport.QueuePair, error) {
	n.net.mu.Lock()
	n.net.nextH++
	h := wire.Handle{Context: n.cid, Resource: n.net.nextH}
	rqp := newRingQueuePair(h, produceSize, consumeSize)
	n.net.qps[h] = rqp
	n.net.mu.Unlock()

	return &sideView{rqp: rqp, produce: rqp.aToB, consume: rqp.bToA}, nil
}

// Attach binds to a handle previously allocated by Alloc on the peer (this
// side is "B": produce/consume are swapped relative to the allocator).
func (n *Node) Attach(peerCID uint32, h wire.Handle, flags transport.AllocFlags) (transport.QueuePair, error) {
	n.net.mu.RLock()
	rqp, ok := n.net.qps[h]
	allocator, hasAllocator := n.net.nodes[h.Context]
	n.net.mu.RUnlock()
	if !ok {
		return nil, transport.ErrHandleUnknown
	}

	if hasAllocator {
		allocator.fire(transport.EventPeerAttach, h)
	}

	return &sideView{rqp: rqp, produce: rqp.bToA, consume: rqp.aToB}, nil
}

// DetachHandle simulates a peer crash: both sides' queue pair is marked
// detached and a PEER_DETACH event fires for it on every node in the
// network (loopback semantics — a real transport would target only the
// peer's event subscribers).
func (n *Network) DetachHandle(h wire.Handle) {
	n.mu.RLock()
	rqp := n.qps[h]
	nodes := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		nodes = append(nodes, node)
	}
	n.mu.RUnlock()

	if rqp == nil {
		return
	}

	rqp.mu.Lock()
	rqp.detached = true
	rqp.cond.Broadcast()
	rqp.mu.Unlock()

	for _, node := range nodes {
		node.fire(transport.EventPeerDetach, h)
	}
}

// Resume fires RESUMED on every node in the network, simulating a
// QP_RESUMED event (spec.md S6).
func (n *Network) Resume() {
	n.mu.RLock()
	nodes := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		nodes = append(nodes, node)
	}
	n.mu.RUnlock()

	for _, node := range nodes {
		node.fire(transport.EventResumed, wire.Handle{})
	}
}
