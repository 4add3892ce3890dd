package state

import (
	"sync"

	"MyLocalBoard/internal/errs"
)

// Room owns one Session and is the serialization point for everything
// that touches it: at most one Do callback runs per room at a time.
type Room struct {
	id       string
	mu       sync.Mutex
	session  *Session
	released bool
}

func newRoom(id string, palette []string) *Room {
	return &Room{id: id, session: NewSession(palette)}
}

func (r *Room) ID() string { return r.id }

// Do runs fn with exclusive access to the room's session. It returns
// errs.ErrRoomReleased when the room was removed from its registry after
// the caller resolved it; the caller should resolve again.
func (r *Room) Do(fn func(*Session)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return errs.ErrRoomReleased
	}
	fn(r.session)
	return nil
}
