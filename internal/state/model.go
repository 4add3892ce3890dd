package state

// Point is a canvas-space coordinate.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

type OpKind string

const (
	OpDraw  OpKind = "draw"
	OpErase OpKind = "erase"
)

// Valid reports whether k is one of the known operation kinds.
func (k OpKind) Valid() bool {
	return k == OpDraw || k == OpErase
}

// Operation is one complete stroke recorded in a room's log.
// Color and Width are round-tripped, never interpreted. CreatedAt is unix
// milliseconds set by the author and plays no part in ordering.
type Operation struct {
	ID        string  `json:"id" msgpack:"id"`
	UserID    string  `json:"userId" msgpack:"userId"`
	UserName  string  `json:"userName" msgpack:"userName"`
	Kind      OpKind  `json:"kind" msgpack:"kind"`
	Points    []Point `json:"points" msgpack:"points"`
	Color     string  `json:"color" msgpack:"color"`
	Width     float64 `json:"width" msgpack:"width"`
	CreatedAt int64   `json:"createdAt" msgpack:"createdAt"`
}

// clone copies the point slice so callers never alias log entries.
func (o Operation) clone() Operation {
	o.Points = append([]Point(nil), o.Points...)
	return o
}

// User is a connected participant. A nil Cursor means no movement seen yet.
type User struct {
	ID     string `json:"id" msgpack:"id"`
	Name   string `json:"name" msgpack:"name"`
	Color  string `json:"color" msgpack:"color"`
	Cursor *Point `json:"cursor,omitempty" msgpack:"cursor,omitempty"`
}

func (u User) clone() User {
	if u.Cursor != nil {
		c := *u.Cursor
		u.Cursor = &c
	}
	return u
}

// Snapshot is what a joining participant receives.
type Snapshot struct {
	User       User
	Operations []Operation
	Users      []User
}
