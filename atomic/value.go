// Package atomic holds the narrow set of generic concurrency primitives
// vsocket and registry actually need: a single-slot atomic box (refcount,
// state, and ownership flag) and a typed wrapper over sync.Map (the socket
// tables). It is adapted down from the teacher's much larger generic
// atomic package to just this surface; see DESIGN.md for why the rest of
// that package (default-value substitution, the untyped Map[K], Cast/
// IsEmpty reflection helpers) has no caller here.
package atomic

import "sync/atomic"

// Value is a type-safe box around sync/atomic.Value, exposing only the
// Load/Store/CompareAndSwap operations vsocket.Socket uses for its state,
// owned, and refs fields.
type Value[T comparable] struct {
	v atomic.Value
}

// box carries T inside the atomic.Value so a zero value of T (which for
// e.g. bool or uint8 is a perfectly valid value to store) never has to be
// confused with "nothing stored yet".
type box[T any] struct {
	val T
}

func NewValue[T comparable]() *Value[T] {
	return &Value[T]{}
}

// Load returns the current value, or the zero value of T if Store has
// never been called.
func (a *Value[T]) Load() T {
	if b, ok := a.v.Load().(box[T]); ok {
		return b.val
	}
	var zero T
	return zero
}

func (a *Value[T]) Store(val T) {
	a.v.Store(box[T]{val: val})
}

// CompareAndSwap compares the current value against old and, if equal,
// stores new. It treats an untouched Value as holding the zero value of T.
func (a *Value[T]) CompareAndSwap(old, new T) bool {
	for {
		cur := a.v.Load()
		b, ok := cur.(box[T])
		if !ok {
			var zero T
			if old != zero {
				return false
			}
			if a.v.CompareAndSwap(nil, box[T]{val: new}) {
				return true
			}
			continue
		}
		if b.val != old {
			return false
		}
		if a.v.CompareAndSwap(cur, box[T]{val: new}) {
			return true
		}
	}
}
