// Package syncmap provides a typed facade over sync.Map.
package syncmap

import "sync"

// Map is a type-safe wrapper around sync.Map. The zero value is empty and
// ready to use.
type Map[K comparable, V any] struct {
	inner sync.Map
}

func (m *Map[K, V]) Store(key K, value V) {
	m.inner.Store(key, value)
}

// Load returns the value for key, or the zero value and false when absent.
func (m *Map[K, V]) Load(key K) (V, bool) {
	v, ok := m.inner.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (m *Map[K, V]) Delete(key K) {
	m.inner.Delete(key)
}

// LoadOrStore returns the existing value for key if present; otherwise it
// stores and returns value. The boolean is true when the value was already
// present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	v, loaded := m.inner.LoadOrStore(key, value)
	return v.(V), loaded
}

// Range calls fn for each entry until fn returns false. It observes a
// point-in-time view the same way sync.Map.Range does.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.inner.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}
