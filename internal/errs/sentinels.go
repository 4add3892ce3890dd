// Package errs contains sentinel errors shared by the protocol, transport and client layers.
package errs

import "errors"

var (
	// ErrMalformed indicates an inbound payload with the wrong shape or invalid values.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownMessage indicates an inbound message type outside the protocol.
	ErrUnknownMessage = errors.New("unknown message type")

	// ErrNotJoined indicates a room-scoped message from a connection that has not joined a room.
	ErrNotJoined = errors.New("not joined")

	// ErrAlreadyJoined indicates a second join on the same connection.
	ErrAlreadyJoined = errors.New("already joined")

	// ErrRoomReleased indicates a room reference that was removed from the registry.
	ErrRoomReleased = errors.New("room released")

	// ErrConnClosed indicates a send to a connection that is gone.
	ErrConnClosed = errors.New("connection closed")
)
