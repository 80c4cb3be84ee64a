package atomic

import "sync"

// MapTyped is a type-safe wrapper over sync.Map, exposing only the
// Load/Store/Delete/Range surface registry.Registry uses for its
// bound/unbound/connected socket tables.
type MapTyped[K comparable, V any] struct {
	m sync.Map
}

func NewMapTyped[K comparable, V any]() *MapTyped[K, V] {
	return &MapTyped[K, V]{}
}

func (m *MapTyped[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (m *MapTyped[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

func (m *MapTyped[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// Range calls f once per entry, in the unspecified order sync.Map.Range
// visits them; it stops early if f returns false.
func (m *MapTyped[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}
