package state

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry is the process-wide table of rooms keyed by room id.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	palette []string
	log     *zap.Logger
}

// NewRegistry creates an empty registry. Rooms it creates use palette.
func NewRegistry(palette []string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		rooms:   make(map[string]*Room),
		palette: palette,
		log:     logger.Named("registry"),
	}
}

// Resolve returns the room for id, creating an empty one if needed.
func (g *Registry) Resolve(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	if !ok {
		r = newRoom(id, g.palette)
		g.rooms[id] = r
		g.log.Info("room created", zap.String("room", id), zap.Int("rooms", len(g.rooms)))
	}
	return r
}

// Lookup returns an existing room without creating one.
func (g *Registry) Lookup(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

// ReleaseIfEmpty removes the room when it has no users and reports
// whether it did. A released room rejects further Do calls. The room's
// turn is taken before the registry lock, never while holding it.
func (g *Registry) ReleaseIfEmpty(id string) bool {
	r, ok := g.Lookup(id)
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || !r.session.Empty() {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rooms[id] != r {
		return false
	}
	r.released = true
	delete(g.rooms, id)
	g.log.Info("room released", zap.String("room", id), zap.Int("rooms", len(g.rooms)))
	return true
}

// List returns the ids of live rooms, sorted.
func (g *Registry) List() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Registry) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// Do resolves id and runs fn in that room's turn. If the room is released
// between resolving and acquiring the turn, it resolves again.
func (g *Registry) Do(id string, fn func(*Session)) *Room {
	for {
		r := g.Resolve(id)
		if err := r.Do(fn); err == nil {
			return r
		}
	}
}
