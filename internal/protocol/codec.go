package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/state"
)

// Codec frames messages as {type, data} envelopes.
type Codec interface {
	Name() string
	// Binary reports whether frames go out as websocket binary messages.
	Binary() bool
	Encode(msgType string, data any) ([]byte, error)
	// Decode splits a frame into its type and still-encoded data.
	Decode(frame []byte) (msgType string, data []byte, err error)
	DecodeData(data []byte, v any) error
}

// CodecByName returns the codec for "json" (also the empty name) or "msgpack".
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type JSONCodec struct{}

type jsonEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (JSONCodec) Name() string { return "json" }
func (JSONCodec) Binary() bool { return false }

func (JSONCodec) Encode(msgType string, data any) ([]byte, error) {
	env := struct {
		Type string `json:"type"`
		Data any    `json:"data,omitempty"`
	}{Type: msgType, Data: data}
	return json.Marshal(env)
}

func (JSONCodec) Decode(frame []byte) (string, []byte, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	if bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		env.Data = nil
	}
	return env.Type, env.Data, nil
}

func (JSONCodec) DecodeData(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type MsgpackCodec struct{}

type msgpackEnvelope struct {
	Type string             `msgpack:"type"`
	Data msgpack.RawMessage `msgpack:"data,omitempty"`
}

func (MsgpackCodec) Name() string { return "msgpack" }
func (MsgpackCodec) Binary() bool { return true }

func (MsgpackCodec) Encode(msgType string, data any) ([]byte, error) {
	env := struct {
		Type string `msgpack:"type"`
		Data any    `msgpack:"data,omitempty"`
	}{Type: msgType, Data: data}
	return msgpack.Marshal(env)
}

func (MsgpackCodec) Decode(frame []byte) (string, []byte, error) {
	var env msgpackEnvelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errs.ErrMalformed, err)
	}
	// msgpack nil
	if len(env.Data) == 1 && env.Data[0] == 0xc0 {
		env.Data = nil
	}
	return env.Type, env.Data, nil
}

func (MsgpackCodec) DecodeData(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// EncodeInbound frames a client message.
func EncodeInbound(c Codec, msg Inbound) ([]byte, error) {
	switch m := msg.(type) {
	case OperationMsg:
		return c.Encode(m.Type(), m.Operation)
	case RedoMsg:
		return c.Encode(m.Type(), m.Operation)
	case UndoMsg, ClearMsg:
		return c.Encode(m.Type(), nil)
	default:
		return c.Encode(m.Type(), m)
	}
}

// ParseInbound decodes and validates one frame from a connection. Errors
// wrap errs.ErrMalformed or errs.ErrUnknownMessage.
func ParseInbound(c Codec, frame []byte) (Inbound, error) {
	msgType, data, err := c.Decode(frame)
	if err != nil {
		return nil, err
	}
	need := func(v any) error {
		if len(data) == 0 {
			return fmt.Errorf("%w: %s without data", errs.ErrMalformed, msgType)
		}
		if err := c.DecodeData(data, v); err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrMalformed, msgType, err)
		}
		return nil
	}

	switch msgType {
	case TypeJoin:
		var m JoinMsg
		if err := need(&m); err != nil {
			return nil, err
		}
		join, err := NewJoin(m.RoomID, m.UserName)
		if err != nil {
			return nil, err
		}
		return join, nil
	case TypeOperation:
		var op state.Operation
		if err := need(&op); err != nil {
			return nil, err
		}
		if err := ValidateOperation(op); err != nil {
			return nil, err
		}
		return OperationMsg{Operation: op}, nil
	case TypeCursor:
		var m CursorMsg
		if err := need(&m); err != nil {
			return nil, err
		}
		if !finite(m.X) || !finite(m.Y) {
			return nil, fmt.Errorf("%w: cursor is not finite", errs.ErrMalformed)
		}
		return m, nil
	case TypeUndo:
		return UndoMsg{}, nil
	case TypeRedo:
		var op state.Operation
		if err := need(&op); err != nil {
			return nil, err
		}
		if op.ID == "" {
			return nil, fmt.Errorf("%w: redo without operation id", errs.ErrMalformed)
		}
		return RedoMsg{Operation: op}, nil
	case TypeClear:
		return ClearMsg{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", errs.ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownMessage, msgType)
	}
}

// ParseOutbound decodes one frame sent by the authority into an Outbound
// with a typed Data payload.
func ParseOutbound(c Codec, frame []byte) (Outbound, error) {
	msgType, data, err := c.Decode(frame)
	if err != nil {
		return Outbound{}, err
	}
	var v any
	switch msgType {
	case TypeInitState:
		v = &InitState{}
	case TypePresenceJoined:
		v = &PresenceJoined{}
	case TypePresenceLeft:
		v = &PresenceLeft{}
	case TypeOperation, TypeRedo:
		v = &state.Operation{}
	case TypeCursor:
		v = &CursorMoved{}
	case TypeUndo:
		v = &Undone{}
	case TypeError:
		v = &ErrorPayload{}
	case TypeClear:
		return Outbound{Type: TypeClear}, nil
	default:
		return Outbound{}, fmt.Errorf("%w: %q", errs.ErrUnknownMessage, msgType)
	}
	if len(data) == 0 {
		return Outbound{}, fmt.Errorf("%w: %s without data", errs.ErrMalformed, msgType)
	}
	if err := c.DecodeData(data, v); err != nil {
		return Outbound{}, fmt.Errorf("%w: %s: %v", errs.ErrMalformed, msgType, err)
	}
	return Outbound{Type: msgType, Data: deref(v)}, nil
}

func deref(v any) any {
	switch p := v.(type) {
	case *InitState:
		return *p
	case *PresenceJoined:
		return *p
	case *PresenceLeft:
		return *p
	case *state.Operation:
		return *p
	case *CursorMoved:
		return *p
	case *Undone:
		return *p
	case *ErrorPayload:
		return *p
	}
	return v
}
