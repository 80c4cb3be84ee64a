package memtransport

import (
	"github.com/google/uuid"

	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/wire"
)

// Subscribe registers cb for ev on handle. It never fails in this fake
// transport — in the real transport, resource exhaustion is possible and
// would surface as ENOMEM through errcode.Translate.
func (n *Node) Subscribe(ev transport.Event, handle wire.Handle, cb transport.EventCallback) (transport.SubID, error) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()

	id := transport.SubID(uuid.New())
	n.subs[id] = subEntry{ev: ev, handle: handle, cb: cb}
	return id, nil
}

func (n *Node) Unsubscribe(id transport.SubID) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	delete(n.subs, id)
}

// fire delivers ev for handle to every subscriber interested in it. Used
// internally by queue-pair detach/resume simulation.
func (n *Node) fire(ev transport.Event, handle wire.Handle) {
	n.subsMu.Lock()
	var cbs []transport.EventCallback
	for _, s := range n.subs {
		if s.ev == ev && (s.handle == wire.Handle{} || s.handle == handle) {
			cbs = append(cbs, s.cb)
		}
	}
	n.subsMu.Unlock()

	for _, cb := range cbs {
		go cb(ev, handle)
	}
}
