// Package memtransport is an in-process fake of transport.Provider: a
// loopback "network" of nodes keyed by context id, each able to send
// control packets to one another and allocate shared in-memory queue
// pairs. It exists purely for tests and the cmd/vsockctl demo — the real
// datagram/queue-pair primitive is out of scope per spec.md §1 — and is
// grounded in the in-process bus pattern of
// other_examples/8dc57663_jsyzjhj-multisocket__transport-inproc-inproc.go.
package memtransport

import (
	"sync"

	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/wire"
)

// Network is the shared loopback fabric. All Nodes created with the same
// Network can address one another by cid.
type Network struct {
	mu    sync.RWMutex
	nodes map[uint32]*Node
	qps   map[wire.Handle]*ringQueuePair
	nextH uint32
}

func NewNetwork() *Network {
	return &Network{
		nodes: make(map[uint32]*Node),
		qps:   make(map[wire.Handle]*ringQueuePair),
	}
}

// Node is one participant: its own cid, a recv callback registered by the
// dispatcher, and a reference back to the Network for send/alloc.
type Node struct {
	net *Network
	cid uint32

	mu         sync.Mutex
	recv       func(wire.Packet)
	restricted map[uint32]bool // peers whose traffic is "restricted" per spec.md §4.2
	subsMu     sync.Mutex
	subs       map[transport.SubID]subEntry
}

type subEntry struct {
	ev     transport.Event
	handle wire.Handle
	cb     transport.EventCallback
}

// NewNode registers a new participant at cid on net.
func (n *Network) NewNode(cid uint32) *Node {
	node := &Node{
		net:        n,
		cid:        cid,
		restricted: make(map[uint32]bool),
		subs:       make(map[transport.SubID]subEntry),
	}
	n.mu.Lock()
	n.nodes[cid] = node
	n.mu.Unlock()
	return node
}

// MarkRestricted flags peerCID as a restricted source for this node, so
// the dispatcher's restricted-source rule (spec.md §4.2) can be exercised
// in tests.
func (n *Node) MarkRestricted(peerCID uint32) {
	n.mu.Lock()
	n.restricted[peerCID] = true
	n.mu.Unlock()
}

func (n *Node) ContextID() uint32 { return n.cid }

func (n *Node) PrivFlags(cid uint32) (trusted bool, restricted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return false, n.restricted[cid]
}

func (n *Node) Send(pkt wire.Packet) error {
	n.net.mu.RLock()
	peer, ok := n.net.nodes[pkt.Dst.CID]
	n.net.mu.RUnlock()
	if !ok {
		return transport.ErrNoRoute
	}

	peer.mu.Lock()
	cb := peer.recv
	peer.mu.Unlock()
	if cb != nil {
		go cb(pkt)
	}
	return nil
}

func (n *Node) Recv(cb func(wire.Packet)) {
	n.mu.Lock()
	n.recv = cb
	n.mu.Unlock()
}

func (n *Node) Close() error {
	n.mu.Lock()
	n.recv = nil
	n.mu.Unlock()
	return nil
}
