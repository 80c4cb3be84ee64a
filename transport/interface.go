// Package transport declares the external collaborator interfaces spec.md
// §1 places out of scope: the datagram transport and the shared-memory
// ring-buffer queue-pair primitive. The core (registry, vsocket, stream,
// sockops) consumes these interfaces; it never reimplements the transport.
//
// transport/memtransport provides the only concrete implementation in this
// module, an in-process fake used by tests and cmd/vsockctl.
package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/sabouaram/vsock/wire"
)

// Event names a transport-level event a socket can subscribe to.
type Event uint8

const (
	EventPeerAttach Event = iota
	EventPeerDetach
	EventResumed
)

func (e Event) String() string {
	switch e {
	case EventPeerAttach:
		return "PEER_ATTACH"
	case EventPeerDetach:
		return "PEER_DETACH"
	case EventResumed:
		return "RESUMED"
	default:
		return "UNKNOWN_EVENT"
	}
}

// SubID identifies a live event subscription so it can be torn down later.
// The zero value (uuid.Nil) means "not subscribed" (spec.md: "attach_sub,
// detach_sub: event subscription ids (invalid when not subscribed)").
type SubID uuid.UUID

// Valid reports whether id was ever minted by Subscribe.
func (id SubID) Valid() bool { return id != SubID(uuid.Nil) }

// EventCallback is invoked when a subscribed event fires. handle identifies
// the queue pair the event concerns.
type EventCallback func(ev Event, handle wire.Handle)

// EventBus is the subscribe/unsubscribe half of spec.md §6
// (event_subscribe/event_unsubscribe).
type EventBus interface {
	Subscribe(ev Event, handle wire.Handle, cb EventCallback) (SubID, error)
	Unsubscribe(id SubID)
}

// Datagram is the control-plane transport spec.md §6 names dg_create,
// dg_destroy and dg_send. Recv delivers inbound control datagrams to cb;
// cb runs in a goroutine standing in for "bottom-half" context and must
// not block for long (spec.md §5).
type Datagram interface {
	Send(pkt wire.Packet) error
	Recv(cb func(wire.Packet))
	Close() error
}

// AllocFlags mirrors the flags argument of qp_alloc (privileged variant,
// loopback variant).
type AllocFlags uint8

const (
	FlagNone AllocFlags = 0
	FlagPriv AllocFlags = 1 << iota
	FlagLocal
	FlagAttachOnly
)

// QueuePair is a live shared-memory ring-buffer pair: a produce queue this
// side writes and a consume queue this side reads, each mirrored on the
// peer. It is the only shared-memory resource in this protocol
// (spec.md §5).
type QueuePair interface {
	Handle() wire.Handle

	EnqueueV(ctx context.Context, iov [][]byte) (int, error)
	DequeueV(ctx context.Context, iov [][]byte, peek bool) (int, error)
	BufReady() uint64  // bytes available to DequeueV
	FreeSpace() uint64 // bytes available to EnqueueV

	Detach() error
}

// QueuePairProvider is the allocate/attach half of spec.md §6
// (qp_alloc/qp_detach/qp_init), implicitly parameterized by peer cid.
type QueuePairProvider interface {
	Alloc(peerCID uint32, produceSize, consumeSize uint64, flags AllocFlags) (QueuePair, error)
	Attach(peerCID uint32, h wire.Handle, flags AllocFlags) (QueuePair, error)
}

// Identity is the get_context_id/get_priv_flags half of spec.md §6.
type Identity interface {
	ContextID() uint32
	PrivFlags(cid uint32) (trusted bool, restricted bool)
}

// Provider bundles everything the core needs from one transport backend.
// Each Family is wired to exactly one Provider; there is no per-peer
// selection between a loopback and a remote backend.
type Provider interface {
	Datagram
	QueuePairProvider
	EventBus
	Identity
}
