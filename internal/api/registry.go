package api

import (
	"sync"

	"github.com/arung-agamani/roomd/internal/room"
)

// Registry is the collection of active room Controllers the HTTP layer
// serves, keyed by room ID.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room.Controller
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*room.Controller)}
}

// Put registers ctrl under id, replacing any previous entry.
func (r *Registry) Put(id string, ctrl *room.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[id] = ctrl
}

// Get returns the Controller for id, if any.
func (r *Registry) Get(id string) (*room.Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rooms[id]
	return c, ok
}

// Remove drops id from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, id)
}
