package vsocket

import (
	"container/list"
	"sync"
	"time"

	vatm "github.com/sabouaram/vsock/atomic"
	"github.com/sabouaram/vsock/notifier"
	"github.com/sabouaram/vsock/transport"
	"github.com/sabouaram/vsock/wire"
)

// Listener is the listener-local bookkeeping of spec.md §3/§4.1: a pending
// list of half-open children and a bounded FIFO accept queue. A Listener
// is itself a *Socket in StateListen; this struct hangs off that Socket's
// Own field.
type Listener struct {
	mu sync.Mutex

	// Owner is the *Socket this Listener is embedded in (Own field), set by
	// the caller right after construction. It lets code holding only a
	// pending child's non-owning Listener back-reference find its way back
	// to the listener Socket itself, e.g. to drop invariant 7's reference.
	Owner *Socket

	pending *list.List // of *pendingEntry
	accept  chan *Socket

	maxAckBacklog uint32
	ackBacklog    uint32
}

type pendingEntry struct {
	sock *Socket
	elem *list.Element
}

// NewListener allocates listener bookkeeping for backlog slots.
func NewListener(backlog uint32) *Listener {
	if backlog == 0 {
		backlog = 1
	}
	return &Listener{
		pending:       list.New(),
		accept:        make(chan *Socket, backlog),
		maxAckBacklog: backlog,
	}
}

// Socket is the per-connection object of spec.md §3. All fields that can
// be touched from more than one of the three execution contexts (user,
// dispatcher/bottom-half, worker) are guarded by mu, except State and refs
// which use lock-free atomics so the dispatcher's "owned by user?" test
// (spec.md §4.2, §9 REDESIGN FLAGS) never blocks.
type Socket struct {
	ID uint64

	mu      sync.Mutex
	Changed *sync.Cond // broadcast on any state/shutdown/data-availability change

	Kind Type

	Local, Remote wire.Addr

	state *vatm.Value[State]
	owned *vatm.Value[bool] // true while a user-context call holds mu

	QP                         transport.QueuePair
	ProduceSize, ConsumeSize   uint64
	Min, Default, Max          uint64

	AttachSub, DetachSub transport.SubID

	PeerShutdown, LocalShutdown wire.ShutMask

	Trusted bool

	// listener is the back-reference to the parent listener of a
	// server-side pending/accepted child. It is non-owning: the owning
	// direction is listener -> pendingEntry/accept channel -> child. The
	// reaper clears this field before dropping the listener reference, to
	// avoid the cyclic-reference hazard spec.md §9 calls out.
	listenerMu sync.Mutex
	listener   *Listener
	pendEntry  *pendingEntry

	Rejected bool

	// ConnectStart marks when this socket entered CONNECTING, so the
	// handshake's eventual worker-side success/failure can report elapsed
	// time to vmetrics. Zero if never set.
	ConnectStart time.Time

	// Own is non-nil iff this Socket is itself a listener (StateListen).
	Own *Listener

	reaperMu sync.Mutex
	reaper   *time.Timer

	refs *vatm.Value[int32]

	Err error

	transport transport.Provider

	// Notifier delegates the WROTE/READ/WAITING_* flow-control packets of
	// spec.md §4.3.4 ("other: delegate to notifier"). Only meaningful once
	// CONNECTED, but always present so the dispatcher's fast path never
	// nil-checks it.
	Notifier *notifier.Notifier
}

// New allocates a fresh, unbound Socket with one implicit reference held
// by its creator (spec.md §3 Lifecycle: "Created by user syscall
// (user-owned)... Destroyed when refcount reaches zero").
func New(id uint64, kind Type, tp transport.Provider, trusted bool) *Socket {
	s := &Socket{
		ID:        id,
		Kind:      kind,
		Trusted:   trusted,
		transport: tp,
		state:     vatm.NewValue[State](),
		owned:     vatm.NewValue[bool](),
		refs:      vatm.NewValue[int32](),
		Notifier:  notifier.New(),
	}
	s.Changed = sync.NewCond(&s.mu)
	s.state.Store(StateUnconnected)
	s.refs.Store(1)
	return s
}

func (s *Socket) State() State     { return s.state.Load() }
func (s *Socket) SetState(v State) { s.state.Store(v) }

// Owned reports whether a user-context call currently holds mu — the
// lock-free flag the dispatcher polls per spec.md §4.2 routing rule (a).
func (s *Socket) Owned() bool { return s.owned.Load() }

// Lock is the sleeping, user-context flavor of the per-socket lock.
func (s *Socket) Lock() {
	s.mu.Lock()
	s.owned.Store(true)
}

func (s *Socket) Unlock() {
	s.owned.Store(false)
	s.mu.Unlock()
}

// TryLockBH is the bottom-half spinlock flavor: it never blocks. It
// reports false (defer to worker) when a user-context call owns the
// socket, matching spec.md §5 ("bottom-half paths acquire the BH lock,
// test owned by user? — if yes, defer; if no, fast-path and release").
func (s *Socket) TryLockBH() bool {
	if s.owned.Load() {
		return false
	}
	return s.mu.TryLock()
}

func (s *Socket) UnlockBH() { s.mu.Unlock() }

// Ref increments the reference count. Every table/list membership and
// every in-flight work item holds exactly one reference (spec.md §3
// invariant 6, §5).
func (s *Socket) Ref() {
	for {
		v := s.refs.Load()
		if s.refs.CompareAndSwap(v, v+1) {
			return
		}
	}
}

// Unref decrements the reference count and runs the destructor exactly
// once when it reaches zero (spec.md §8 property 4).
func (s *Socket) Unref() {
	for {
		v := s.refs.Load()
		if v <= 0 {
			return
		}
		if s.refs.CompareAndSwap(v, v-1) {
			if v-1 == 0 {
				s.destroy()
			}
			return
		}
	}
}

func (s *Socket) RefCount() int32 { return s.refs.Load() }

// destroy runs final teardown: unsubscribe events before detaching the
// queue pair (spec.md §5: "unsubscription happens inside the destructor
// before the final free" — avoids callbacks into freed memory), detach the
// queue pair, and stop the reaper timer if one is still armed.
func (s *Socket) destroy() {
	if s.transport != nil {
		if s.AttachSub.Valid() {
			s.transport.Unsubscribe(s.AttachSub)
		}
		if s.DetachSub.Valid() {
			s.transport.Unsubscribe(s.DetachSub)
		}
	}
	if s.QP != nil {
		_ = s.QP.Detach()
	}

	s.reaperMu.Lock()
	if s.reaper != nil {
		s.reaper.Stop()
		s.reaper = nil
	}
	s.reaperMu.Unlock()

	s.SetState(StateFree)
}

// SetListener installs the non-owning back-reference to a parent
// listener for a newly created server-side child (spec.md §4.3.1).
func (s *Socket) SetListener(l *Listener) {
	s.listenerMu.Lock()
	s.listener = l
	s.listenerMu.Unlock()
}

// ListenerRef returns the parent listener back-reference, or nil once the
// reaper has cleared it.
func (s *Socket) ListenerRef() *Listener {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	return s.listener
}

// ClearListener drops the back-reference; called by the reaper before it
// releases the listener's own reference, resolving the cyclic-reference
// hazard of spec.md §9.
func (s *Socket) ClearListener() {
	s.listenerMu.Lock()
	s.listener = nil
	s.listenerMu.Unlock()
}

// ArmReaper schedules fn to run once after d, replacing any previously
// scheduled reaper (spec.md §4.3.1: "schedule reaper in 1 second").
func (s *Socket) ArmReaper(d time.Duration, fn func()) {
	s.reaperMu.Lock()
	defer s.reaperMu.Unlock()
	if s.reaper != nil {
		s.reaper.Stop()
	}
	s.reaper = time.AfterFunc(d, fn)
}

// CancelReaper stops a scheduled reaper, e.g. because the pending child
// was torn down before it fired. An accepted child keeps its reaper armed.
func (s *Socket) CancelReaper() {
	s.reaperMu.Lock()
	defer s.reaperMu.Unlock()
	if s.reaper != nil {
		s.reaper.Stop()
		s.reaper = nil
	}
}

// Wake broadcasts on Changed, waking every blocked user call so it can
// re-examine its wakeup condition (spec.md §5 suspension points).
func (s *Socket) Wake() { s.Changed.Broadcast() }
