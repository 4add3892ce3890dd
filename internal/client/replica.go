package client

import (
	"sync"

	"MyLocalBoard/internal/protocol"
	"MyLocalBoard/internal/state"
)

// Replica is a client's copy of one room, rebuilt from the authority's
// events. It is safe for concurrent use.
type Replica struct {
	mu     sync.Mutex
	self   state.User
	joined bool
	ready  chan struct{}

	// set by the first rejection that arrives before init-state
	joinErr  error
	rejected chan struct{}

	ops    []state.Operation
	users  []state.User
	undone []state.Operation
}

func NewReplica() *Replica {
	return &Replica{ready: make(chan struct{}), rejected: make(chan struct{})}
}

// Apply folds one event into the replica. Unknown events are ignored.
func (r *Replica) Apply(msg protocol.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch m := msg.Data.(type) {
	case protocol.InitState:
		r.self = m.User
		r.ops = append([]state.Operation(nil), m.Operations...)
		r.users = append([]state.User(nil), m.Users...)
		r.undone = nil
		if !r.joined {
			r.joined = true
			close(r.ready)
		}
	case protocol.PresenceJoined:
		r.users = append([]state.User(nil), m.Users...)
	case protocol.PresenceLeft:
		r.users = append([]state.User(nil), m.Users...)
	case protocol.CursorMoved:
		for i := range r.users {
			if r.users[i].ID == m.UserID {
				r.users[i].Cursor = &state.Point{X: m.X, Y: m.Y}
			}
		}
	case protocol.Undone:
		if i := r.index(m.OperationID); i >= 0 {
			r.ops = append(r.ops[:i], r.ops[i+1:]...)
		}
		r.undone = append(r.undone, m.Operation)
	case state.Operation:
		if msg.Type == protocol.TypeRedo {
			r.dropUndone(m.ID)
		} else {
			r.undone = nil
		}
		r.appendLocked(m)
	case protocol.ErrorPayload:
		// not_joined answers a command sent before the join, not the join itself.
		if !r.joined && r.joinErr == nil && m.Code != protocol.CodeNotJoined {
			r.joinErr = m.Err()
			close(r.rejected)
		}
	default:
		if msg.Type == protocol.TypeClear {
			r.ops = nil
			r.undone = nil
		}
	}
}

// Self is the joining user as the authority registered it.
func (r *Replica) Self() (state.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self, r.joined
}

// Ready is closed once the first init-state has been applied.
func (r *Replica) Ready() <-chan struct{} { return r.ready }

// Rejected is closed when the authority refused the join; JoinErr says why.
func (r *Replica) Rejected() <-chan struct{} { return r.rejected }

func (r *Replica) JoinErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinErr
}

func (r *Replica) Operations() []state.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]state.Operation(nil), r.ops...)
}

func (r *Replica) Users() []state.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]state.User(nil), r.users...)
}

// LastUndone is the operation a redo would restore next.
func (r *Replica) LastUndone() (state.Operation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.undone) == 0 {
		return state.Operation{}, false
	}
	return r.undone[len(r.undone)-1], true
}

// local records an operation this client authored. The authority does not
// echo it back.
func (r *Replica) local(op state.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.undone = nil
	r.appendLocked(op)
}

// appendLocked adds op at the tail. An op already held is replaced in
// place by the authority's copy.
func (r *Replica) appendLocked(op state.Operation) {
	if i := r.index(op.ID); i >= 0 {
		r.ops[i] = op
		return
	}
	r.ops = append(r.ops, op)
}

func (r *Replica) index(id string) int {
	for i := len(r.ops) - 1; i >= 0; i-- {
		if r.ops[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Replica) dropUndone(id string) {
	for i := len(r.undone) - 1; i >= 0; i-- {
		if r.undone[i].ID == id {
			r.undone = append(r.undone[:i], r.undone[i+1:]...)
			return
		}
	}
}
