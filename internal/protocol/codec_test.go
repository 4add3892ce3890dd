package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/state"
)

func TestParseInbound_JSON(t *testing.T) {
	t.Parallel()
	c := JSONCodec{}

	msg, err := ParseInbound(c, []byte(`{"type":"join","data":{"roomId":" r1 ","userName":""}}`))
	require.NoError(t, err)
	require.Equal(t, JoinMsg{RoomID: "r1", UserName: AnonymousName}, msg)

	msg, err = ParseInbound(c, []byte(`{"type":"operation","data":{"id":"o1","kind":"erase","points":[{"x":1,"y":2}],"color":"#fff","width":8,"createdAt":1700000000000}}`))
	require.NoError(t, err)
	op := msg.(OperationMsg).Operation
	require.Equal(t, "o1", op.ID)
	require.Equal(t, state.OpErase, op.Kind)
	require.Equal(t, []state.Point{{X: 1, Y: 2}}, op.Points)
	require.Equal(t, int64(1700000000000), op.CreatedAt)

	msg, err = ParseInbound(c, []byte(`{"type":"cursor","data":{"x":5,"y":6}}`))
	require.NoError(t, err)
	require.Equal(t, CursorMsg{X: 5, Y: 6}, msg)

	msg, err = ParseInbound(c, []byte(`{"type":"undo"}`))
	require.NoError(t, err)
	require.Equal(t, UndoMsg{}, msg)

	msg, err = ParseInbound(c, []byte(`{"type":"clear","data":null}`))
	require.NoError(t, err)
	require.Equal(t, ClearMsg{}, msg)

	msg, err = ParseInbound(c, []byte(`{"type":"redo","data":{"id":"o1"}}`))
	require.NoError(t, err)
	require.Equal(t, "o1", msg.(RedoMsg).Operation.ID)
}

func TestParseInbound_Rejects(t *testing.T) {
	t.Parallel()
	c := JSONCodec{}
	cases := map[string]struct {
		frame string
		want  error
	}{
		"not json":        {`{nope`, errs.ErrMalformed},
		"missing type":    {`{"data":{}}`, errs.ErrMalformed},
		"unknown type":    {`{"type":"teleport"}`, errs.ErrUnknownMessage},
		"join no data":    {`{"type":"join"}`, errs.ErrMalformed},
		"join no room":    {`{"type":"join","data":{"userName":"A"}}`, errs.ErrMalformed},
		"wrong type":      {`{"type":"cursor","data":{"x":"left","y":1}}`, errs.ErrMalformed},
		"bad kind":        {`{"type":"operation","data":{"kind":"smudge","points":[{"x":1,"y":1}]}}`, errs.ErrMalformed},
		"no points":       {`{"type":"operation","data":{"kind":"draw","points":[]}}`, errs.ErrMalformed},
		"negative width":  {`{"type":"operation","data":{"kind":"draw","points":[{"x":1,"y":1}],"width":-1}}`, errs.ErrMalformed},
		"redo without id": {`{"type":"redo","data":{"kind":"draw"}}`, errs.ErrMalformed},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseInbound(c, []byte(tc.frame))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewJoin_LongValues(t *testing.T) {
	t.Parallel()
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	_, err := NewJoin(string(long), "A")
	require.ErrorIs(t, err, errs.ErrMalformed)
	_, err = NewJoin("r1", string(long))
	require.ErrorIs(t, err, errs.ErrMalformed)
}

func TestMsgpack_InboundAndOutbound(t *testing.T) {
	t.Parallel()
	c := MsgpackCodec{}
	op := state.Operation{ID: "o1", Kind: state.OpDraw, Points: []state.Point{{X: 1.5, Y: 2}}, Color: "#abc", Width: 3}

	frame, err := EncodeInbound(c, OperationMsg{Operation: op})
	require.NoError(t, err)
	msg, err := ParseInbound(c, frame)
	require.NoError(t, err)
	require.Equal(t, op, msg.(OperationMsg).Operation)

	frame, err = EncodeInbound(c, UndoMsg{})
	require.NoError(t, err)
	msg, err = ParseInbound(c, frame)
	require.NoError(t, err)
	require.Equal(t, UndoMsg{}, msg)

	frame, err = c.Encode(TypeUndo, Undone{OperationID: "o1", Operation: op})
	require.NoError(t, err)
	out, err := ParseOutbound(c, frame)
	require.NoError(t, err)
	require.Equal(t, Undone{OperationID: "o1", Operation: op}, out.Data)
}

func TestParseOutbound_JSON(t *testing.T) {
	t.Parallel()
	c := JSONCodec{}
	cursor := state.Point{X: 1, Y: 1}
	in := InitState{
		UserID: "u1",
		User:   state.User{ID: "u1", Name: "A", Color: "#E53935"},
		Users:  []state.User{{ID: "u1", Name: "A", Color: "#E53935", Cursor: &cursor}},
	}

	frame, err := c.Encode(TypeInitState, in)
	require.NoError(t, err)
	out, err := ParseOutbound(c, frame)
	require.NoError(t, err)
	require.Equal(t, TypeInitState, out.Type)
	got := out.Data.(InitState)
	require.Equal(t, "u1", got.UserID)
	require.Equal(t, &cursor, got.Users[0].Cursor)

	frame, err = c.Encode(TypeClear, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"clear"}`, string(frame))
	out, err = ParseOutbound(c, frame)
	require.NoError(t, err)
	require.Equal(t, Outbound{Type: TypeClear}, out)
}

func TestCodecByName(t *testing.T) {
	t.Parallel()
	c, err := CodecByName("")
	require.NoError(t, err)
	require.Equal(t, "json", c.Name())
	c, err = CodecByName("msgpack")
	require.NoError(t, err)
	require.True(t, c.Binary())
	_, err = CodecByName("xml")
	require.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()
	require.Equal(t, "not_joined", ErrorCode(errs.ErrNotJoined))
	require.Equal(t, "malformed", ErrorCode(errs.ErrMalformed))
	require.Equal(t, "unknown_type", ErrorCode(errs.ErrUnknownMessage))
	require.Equal(t, "internal", ErrorCode(errs.ErrConnClosed))
	require.Equal(t, "", ErrorCode(nil))
}

func TestErrorPayloadErr(t *testing.T) {
	t.Parallel()
	for _, sentinel := range []error{errs.ErrNotJoined, errs.ErrAlreadyJoined, errs.ErrUnknownMessage, errs.ErrMalformed} {
		p := ErrorPayload{Code: ErrorCode(sentinel), Message: "x"}
		require.ErrorIs(t, p.Err(), sentinel)
	}
	require.EqualError(t, ErrorPayload{Code: CodeInternal, Message: "boom"}.Err(), "internal: boom")
}

func TestValidateOperation(t *testing.T) {
	t.Parallel()
	good := state.Operation{Kind: state.OpDraw, Points: []state.Point{{X: 1, Y: 1}}, Width: 2}
	require.NoError(t, ValidateOperation(good))

	noPoints := good
	noPoints.Points = nil
	badKind := good
	badKind.Kind = "pen"
	negWidth := good
	negWidth.Width = -1
	for _, op := range []state.Operation{noPoints, badKind, negWidth} {
		require.ErrorIs(t, ValidateOperation(op), errs.ErrMalformed)
	}
}
