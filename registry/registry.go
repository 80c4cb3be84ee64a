// Package registry implements the global socket tables of spec.md §4.1:
// the bound-by-address index, the connected-by-(src,dst) index, and the
// listener-local pending/accept lists. The three indices use
// atomic.MapTyped (atomic/synmap.go), a typed sync.Map wrapper narrowed
// down to this package's Load/Store/Delete/Range usage (see DESIGN.md).
package registry

import (
	"sync"

	vatm "github.com/sabouaram/vsock/atomic"
	"github.com/sabouaram/vsock/vsocket"
	"github.com/sabouaram/vsock/wire"
)

// connKey is the full 4-tuple key of the connected index (spec.md §4.1:
// "Keyed on the full 4-tuple so that multiple connections sharing a local
// port can coexist").
type connKey struct {
	Src, Dst wire.Addr
}

// Registry holds the two package-wide indices. A single table-wide mutex
// (tableMu) stands in for spec.md's "single table-wide lock (bottom-half
// safe)": nothing in this Go port runs in real interrupt context, so a
// plain sync.Mutex is the correct, simplified realization (REDESIGN FLAGS,
// spec.md §9).
type Registry struct {
	tableMu sync.Mutex

	bound     *vatm.MapTyped[wire.Addr, *vsocket.Socket]
	unbound   *vatm.MapTyped[uint64, *vsocket.Socket] // "extra bucket" for unbound STREAM sockets
	connected *vatm.MapTyped[connKey, *vsocket.Socket]
}

func New() *Registry {
	return &Registry{
		bound:     vatm.NewMapTyped[wire.Addr, *vsocket.Socket](),
		unbound:   vatm.NewMapTyped[uint64, *vsocket.Socket](),
		connected: vatm.NewMapTyped[connKey, *vsocket.Socket](),
	}
}

// BindInsert inserts a STREAM socket into the bound index under addr,
// taking one reference for the membership (spec.md invariant 3, 6).
func (r *Registry) BindInsert(addr wire.Addr, s *vsocket.Socket) {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	r.unbound.Delete(s.ID)
	s.Ref()
	r.bound.Store(addr, s)
}

// BindInsertIfAbsent atomically claims addr for s, returning false without
// modifying anything if addr is already taken. This is what bind() uses
// (sockops.Bind) to avoid a lookup-then-insert race between two sockets
// racing for the same explicit port or the same PORT_ANY scan candidate.
func (r *Registry) BindInsertIfAbsent(addr wire.Addr, s *vsocket.Socket) bool {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	if _, exists := r.bound.Load(addr); exists {
		return false
	}
	r.unbound.Delete(s.ID)
	s.Ref()
	r.bound.Store(addr, s)
	return true
}

// BindLookup returns the socket bound to addr, if any.
func (r *Registry) BindLookup(addr wire.Addr) (*vsocket.Socket, bool) {
	return r.bound.Load(addr)
}

// BindRemove removes s from the bound index, dropping the membership
// reference. Safe to call on a socket that was never inserted.
func (r *Registry) BindRemove(addr wire.Addr, s *vsocket.Socket) {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()

	if got, ok := r.bound.Load(addr); ok && got == s {
		r.bound.Delete(addr)
		s.Unref()
	}
}

// TrackUnbound keeps a just-created, not-yet-bound STREAM socket
// reachable so release() can find it (spec.md §4.1: "An extra bucket
// holds UNBOUND STREAM sockets").
func (r *Registry) TrackUnbound(s *vsocket.Socket) {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	s.Ref()
	r.unbound.Store(s.ID, s)
}

func (r *Registry) UntrackUnbound(s *vsocket.Socket) {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	if _, ok := r.unbound.Load(s.ID); ok {
		r.unbound.Delete(s.ID)
		s.Unref()
	}
}

// ConnectedInsert inserts s into the connected index under (src,dst),
// taking one reference (spec.md invariant 2, 6).
func (r *Registry) ConnectedInsert(src, dst wire.Addr, s *vsocket.Socket) {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	s.Ref()
	r.connected.Store(connKey{Src: src, Dst: dst}, s)
}

func (r *Registry) ConnectedRemove(src, dst wire.Addr, s *vsocket.Socket) {
	r.tableMu.Lock()
	defer r.tableMu.Unlock()
	k := connKey{Src: src, Dst: dst}
	if got, ok := r.connected.Load(k); ok && got == s {
		r.connected.Delete(k)
		s.Unref()
	}
}

// RangeConnected calls f once per socket currently in the connected index,
// used by the QP_RESUMED handler (spec.md scenario S6) to find every
// CONNECTED stream socket that needs to be treated as peer-detached.
func (r *Registry) RangeConnected(f func(s *vsocket.Socket)) {
	r.connected.Range(func(_ connKey, s *vsocket.Socket) bool {
		f(s)
		return true
	})
}

// RangeBound calls f once per socket currently in the bound index, used by
// vmetrics to sum the pending-ack backlog across every live listener.
func (r *Registry) RangeBound(f func(s *vsocket.Socket)) {
	r.bound.Range(func(_ wire.Addr, s *vsocket.Socket) bool {
		f(s)
		return true
	})
}

// Lookup implements the inbound-packet routing algorithm of spec.md §4.1:
// connected-by-(src,dst) first, then bound-by-dst, else miss.
func (r *Registry) Lookup(src, dst wire.Addr) (*vsocket.Socket, bool) {
	if s, ok := r.connected.Load(connKey{Src: src, Dst: dst}); ok {
		s.Ref()
		return s, true
	}
	if s, ok := r.bound.Load(dst); ok {
		s.Ref()
		return s, true
	}
	return nil, false
}
