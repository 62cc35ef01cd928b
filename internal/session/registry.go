package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live engines, one per session id. Engines leave the
// registry at submission; an IN_PROGRESS database row without a live engine
// means the server restarted and the session is rebuilt from its snapshot.
type Registry struct {
	mu      sync.RWMutex
	engines map[uuid.UUID]*Engine
}

func NewRegistry() *Registry {
	return &Registry{engines: make(map[uuid.UUID]*Engine)}
}

// Get returns the live engine for a session id, if any.
func (r *Registry) Get(sessionID uuid.UUID) (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[sessionID]
	return e, ok
}

// Put registers an engine. If another goroutine registered one concurrently,
// the existing engine wins and is returned so only one countdown ever runs.
func (r *Registry) Put(sessionID uuid.UUID, e *Engine) (*Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.engines[sessionID]; ok {
		return existing, false
	}
	r.engines[sessionID] = e
	return e, true
}

// Remove drops an engine after submission.
func (r *Registry) Remove(sessionID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.engines, sessionID)
}
