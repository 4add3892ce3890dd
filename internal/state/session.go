package state

import "sort"

// DefaultPalette is the round-robin set of user colors.
var DefaultPalette = []string{
	"#E53935", "#1E88E5", "#43A047", "#FB8C00", "#8E24AA",
	"#00ACC1", "#FDD835", "#6D4C41", "#D81B60", "#546E7A",
}

type member struct {
	user User
	seq  uint64
}

// Session is the authoritative record of one room: the operation log,
// the redo buffer and the connected users.
//
// Session is not safe for concurrent use. Room serializes access to it.
type Session struct {
	log     []Operation
	ids     map[string]struct{}
	redo    []Operation
	users   map[string]*member
	palette []string
	next    int
	joins   uint64
}

// NewSession creates an empty session. A nil or empty palette uses DefaultPalette.
func NewSession(palette []string) *Session {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &Session{
		ids:     make(map[string]struct{}),
		users:   make(map[string]*member),
		palette: palette,
	}
}

// Join registers a user with the next palette color and returns the
// snapshot the new participant needs. Joining again with a known id
// keeps the original color and only refreshes the name.
func (s *Session) Join(userID, userName string) Snapshot {
	m, ok := s.users[userID]
	if ok {
		m.user.Name = userName
	} else {
		s.joins++
		m = &member{
			user: User{ID: userID, Name: userName, Color: s.palette[s.next%len(s.palette)]},
			seq:  s.joins,
		}
		s.next++
		s.users[userID] = m
	}
	return Snapshot{
		User:       m.user.clone(),
		Operations: s.Operations(),
		Users:      s.Users(),
	}
}

// Leave removes the user. Operations the user authored stay in the log.
func (s *Session) Leave(userID string) bool {
	if _, ok := s.users[userID]; !ok {
		return false
	}
	delete(s.users, userID)
	return true
}

// Apply appends op to the tail of the log and discards the redo buffer.
// An op whose id is already in the log is ignored.
func (s *Session) Apply(op Operation) bool {
	if _, dup := s.ids[op.ID]; dup {
		return false
	}
	s.append(op.clone())
	s.redo = nil
	return true
}

// Undo removes the last appended operation, whoever authored it, and
// pushes it onto the redo buffer.
func (s *Session) Undo() (Operation, bool) {
	n := len(s.log)
	if n == 0 {
		return Operation{}, false
	}
	op := s.log[n-1]
	s.log[n-1] = Operation{}
	s.log = s.log[:n-1]
	delete(s.ids, op.ID)
	s.redo = append(s.redo, op)
	return op.clone(), true
}

// Redo moves the buffered operation with the given id back to the log
// tail. Ids not present in the redo buffer are ignored.
func (s *Session) Redo(opID string) (Operation, bool) {
	for i := len(s.redo) - 1; i >= 0; i-- {
		if s.redo[i].ID != opID {
			continue
		}
		op := s.redo[i]
		s.redo = append(s.redo[:i], s.redo[i+1:]...)
		if _, dup := s.ids[op.ID]; dup {
			return Operation{}, false
		}
		s.append(op)
		return op.clone(), true
	}
	return Operation{}, false
}

// Clear empties the log and the redo buffer. It is not undoable.
func (s *Session) Clear() {
	s.log = nil
	s.redo = nil
	s.ids = make(map[string]struct{})
}

// MoveCursor updates the user's cursor. Unknown users are ignored.
func (s *Session) MoveCursor(userID string, p Point) bool {
	m, ok := s.users[userID]
	if !ok {
		return false
	}
	m.user.Cursor = &p
	return true
}

// User returns a copy of the registered user.
func (s *Session) User(userID string) (User, bool) {
	m, ok := s.users[userID]
	if !ok {
		return User{}, false
	}
	return m.user.clone(), true
}

// Operations returns a copy of the log in order.
func (s *Session) Operations() []Operation {
	out := make([]Operation, len(s.log))
	for i, op := range s.log {
		out[i] = op.clone()
	}
	return out
}

// RedoBuffer returns a copy of the redo buffer, most recently undone last.
func (s *Session) RedoBuffer() []Operation {
	out := make([]Operation, len(s.redo))
	for i, op := range s.redo {
		out[i] = op.clone()
	}
	return out
}

// Users lists registered users in join order.
func (s *Session) Users() []User {
	members := make([]*member, 0, len(s.users))
	for _, m := range s.users {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })
	out := make([]User, len(members))
	for i, m := range members {
		out[i] = m.user.clone()
	}
	return out
}

// Len is the number of operations in the log.
func (s *Session) Len() int { return len(s.log) }

// UserCount is the number of connected users.
func (s *Session) UserCount() int { return len(s.users) }

// Empty reports whether nobody is connected. The log may still hold operations.
func (s *Session) Empty() bool { return len(s.users) == 0 }

func (s *Session) append(op Operation) {
	s.log = append(s.log, op)
	s.ids[op.ID] = struct{}{}
}
