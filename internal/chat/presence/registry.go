// Package presence tracks which live connection currently speaks for each
// identity. Identities are keyed by user id, which survives handle renames.
package presence

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry maps an identity key to its most recently announced connection.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]uuid.UUID
	gauge prometheus.Gauge
}

// NewRegistry returns an empty registry. gauge may be nil.
func NewRegistry(gauge prometheus.Gauge) *Registry {
	return &Registry{
		conns: make(map[string]uuid.UUID),
		gauge: gauge,
	}
}

// Announce binds identity to conn. The last announce wins; the binding it
// replaced, if any, is returned.
func (r *Registry) Announce(identity string, conn uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.conns[identity]
	r.conns[identity] = conn
	r.report()
	return prev, ok
}

func (r *Registry) Lookup(identity string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// Remove deletes the binding only while it still points at conn, so a late
// disconnect of an old connection leaves a newer one in place.
func (r *Registry) Remove(identity string, conn uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[identity]; !ok || cur != conn {
		return false
	}
	delete(r.conns, identity)
	r.report()
	return true
}

// Clear drops every binding.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = make(map[string]uuid.UUID)
	r.report()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// report must be called with mu held.
func (r *Registry) report() {
	if r.gauge != nil {
		r.gauge.Set(float64(len(r.conns)))
	}
}
