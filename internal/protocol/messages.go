// Package protocol defines the messages exchanged between a connection and
// the room authority, their wire codecs, and the dispatcher that turns
// inbound messages into ordered session mutations and broadcasts.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/state"
)

// Message types. "operation", "cursor", "undo", "redo" and "clear" are
// used in both directions.
const (
	TypeJoin      = "join"
	TypeOperation = "operation"
	TypeCursor    = "cursor"
	TypeUndo      = "undo"
	TypeRedo      = "redo"
	TypeClear     = "clear"

	TypeInitState      = "init-state"
	TypePresenceJoined = "presence-joined"
	TypePresenceLeft   = "presence-left"
	TypeError          = "error"
)

const (
	maxRoomIDLen   = 128
	maxUserNameLen = 64
	// AnonymousName is used when a join carries no name.
	AnonymousName = "Anonymous"
)

// Inbound is the closed set of messages a connection can send.
type Inbound interface {
	Type() string
}

type JoinMsg struct {
	RoomID   string `json:"roomId" msgpack:"roomId"`
	UserName string `json:"userName" msgpack:"userName"`
}

type OperationMsg struct {
	Operation state.Operation
}

type CursorMsg struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

type UndoMsg struct{}

// RedoMsg carries the operation to restore. Only its id is trusted.
type RedoMsg struct {
	Operation state.Operation
}

type ClearMsg struct{}

func (JoinMsg) Type() string      { return TypeJoin }
func (OperationMsg) Type() string { return TypeOperation }
func (CursorMsg) Type() string    { return TypeCursor }
func (UndoMsg) Type() string      { return TypeUndo }
func (RedoMsg) Type() string      { return TypeRedo }
func (ClearMsg) Type() string     { return TypeClear }

// Outbound is a message from the authority to a connection. Data is one
// of the payload types below, a state.Operation, or nil.
type Outbound struct {
	Type string
	Data any
}

type InitState struct {
	UserID     string            `json:"userId" msgpack:"userId"`
	User       state.User        `json:"user" msgpack:"user"`
	Operations []state.Operation `json:"operations" msgpack:"operations"`
	Users      []state.User      `json:"users" msgpack:"users"`
}

type PresenceJoined struct {
	User  state.User   `json:"user" msgpack:"user"`
	Users []state.User `json:"users" msgpack:"users"`
}

type PresenceLeft struct {
	UserID string       `json:"userId" msgpack:"userId"`
	Users  []state.User `json:"users" msgpack:"users"`
}

type CursorMoved struct {
	UserID string  `json:"userId" msgpack:"userId"`
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
}

type Undone struct {
	OperationID string          `json:"operationId" msgpack:"operationId"`
	Operation   state.Operation `json:"operation" msgpack:"operation"`
}

type ErrorPayload struct {
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
}

// NewJoin validates and normalizes a join request.
func NewJoin(roomID, userName string) (JoinMsg, error) {
	roomID = strings.TrimSpace(roomID)
	userName = strings.TrimSpace(userName)
	switch {
	case roomID == "":
		return JoinMsg{}, fmt.Errorf("%w: empty roomId", errs.ErrMalformed)
	case len(roomID) > maxRoomIDLen:
		return JoinMsg{}, fmt.Errorf("%w: roomId longer than %d bytes", errs.ErrMalformed, maxRoomIDLen)
	case len(userName) > maxUserNameLen:
		return JoinMsg{}, fmt.Errorf("%w: userName longer than %d bytes", errs.ErrMalformed, maxUserNameLen)
	}
	if userName == "" {
		userName = AnonymousName
	}
	return JoinMsg{RoomID: roomID, UserName: userName}, nil
}

// ValidateOperation checks what the authority requires of an inbound
// operation before it may enter a log.
func ValidateOperation(op state.Operation) error {
	if !op.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", errs.ErrMalformed, op.Kind)
	}
	if len(op.Points) == 0 {
		return fmt.Errorf("%w: operation without points", errs.ErrMalformed)
	}
	for i, p := range op.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("%w: point %d is not finite", errs.ErrMalformed, i)
		}
	}
	if !finite(op.Width) || op.Width < 0 {
		return fmt.Errorf("%w: bad width", errs.ErrMalformed)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Error codes carried by ErrorPayload.
const (
	CodeNotJoined     = "not_joined"
	CodeAlreadyJoined = "already_joined"
	CodeUnknownType   = "unknown_type"
	CodeMalformed     = "malformed"
	CodeInternal      = "internal"
)

// ErrorCode maps a protocol error to the code sent to the client.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errs.ErrNotJoined):
		return CodeNotJoined
	case errors.Is(err, errs.ErrAlreadyJoined):
		return CodeAlreadyJoined
	case errors.Is(err, errs.ErrUnknownMessage):
		return CodeUnknownType
	case errors.Is(err, errs.ErrMalformed):
		return CodeMalformed
	default:
		return CodeInternal
	}
}

// Err turns a received error payload back into an error that matches the
// sentinel its code came from.
func (p ErrorPayload) Err() error {
	var sentinel error
	switch p.Code {
	case CodeNotJoined:
		sentinel = errs.ErrNotJoined
	case CodeAlreadyJoined:
		sentinel = errs.ErrAlreadyJoined
	case CodeUnknownType:
		sentinel = errs.ErrUnknownMessage
	case CodeMalformed:
		sentinel = errs.ErrMalformed
	default:
		return fmt.Errorf("%s: %s", p.Code, p.Message)
	}
	return fmt.Errorf("%w (%s)", sentinel, p.Message)
}
