// Package client is a Go participant for a board room: it dials the
// authority, sends strokes and commands, and keeps a Replica of the room
// current from the event stream.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/protocol"
	"MyLocalBoard/internal/state"
	"MyLocalBoard/internal/stroke"
)

const (
	eventBuffer = 256
	writeWait   = 10 * time.Second
)

type Client struct {
	conn    *websocket.Conn
	codec   protocol.Codec
	log     *zap.Logger
	replica *Replica
	events  chan protocol.Outbound
	done    chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial connects to a board websocket endpoint such as ws://host:8888/ws.
func Dial(ctx context.Context, rawURL string, codec protocol.Codec, logger *zap.Logger) (*Client, error) {
	if codec == nil {
		codec = protocol.JSONCodec{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bad url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	c := &Client{
		conn:    conn,
		codec:   codec,
		log:     logger.Named("client"),
		replica: NewReplica(),
		events:  make(chan protocol.Outbound, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events delivers every event after it has been applied to the replica.
// It is closed when the connection ends. Events are dropped if the
// channel is not drained; the replica stays complete regardless.
func (c *Client) Events() <-chan protocol.Outbound { return c.events }

func (c *Client) Replica() *Replica { return c.replica }

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} { return c.done }

// Join enters room and waits for its initial state, or for the
// authority's refusal.
func (c *Client) Join(ctx context.Context, room, name string) error {
	if _, ok := c.replica.Self(); ok {
		return errs.ErrAlreadyJoined
	}
	msg, err := protocol.NewJoin(room, name)
	if err != nil {
		return err
	}
	if err := c.send(msg); err != nil {
		return err
	}
	select {
	case <-c.replica.Ready():
		return nil
	case <-c.replica.Rejected():
		return c.replica.JoinErr()
	case <-c.done:
		return errs.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Draw simplifies a finished stroke, sends it and applies it locally.
// A stroke the authority would reject is refused here and never applied.
func (c *Client) Draw(points []state.Point, color string, width float64, kind state.OpKind) (state.Operation, error) {
	self, ok := c.replica.Self()
	if !ok {
		return state.Operation{}, errs.ErrNotJoined
	}
	op := state.Operation{
		ID:        state.NewOperationID(self.ID),
		UserID:    self.ID,
		UserName:  self.Name,
		Kind:      kind,
		Points:    stroke.Simplify(points, stroke.DefaultTolerance),
		Color:     color,
		Width:     width,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := protocol.ValidateOperation(op); err != nil {
		return state.Operation{}, err
	}
	if err := c.send(protocol.OperationMsg{Operation: op}); err != nil {
		return state.Operation{}, err
	}
	c.replica.local(op)
	return op, nil
}

func (c *Client) Cursor(x, y float64) error {
	return c.send(protocol.CursorMsg{X: x, Y: y})
}

func (c *Client) Undo() error {
	return c.send(protocol.UndoMsg{})
}

// Redo asks the authority to restore the most recently undone operation.
// It reports false when there is nothing to redo.
func (c *Client) Redo() (bool, error) {
	op, ok := c.replica.LastUndone()
	if !ok {
		return false, nil
	}
	return true, c.send(protocol.RedoMsg{Operation: op})
}

func (c *Client) Clear() error {
	return c.send(protocol.ClearMsg{})
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		if cerr := c.conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	<-c.done
	return err
}

func (c *Client) send(msg protocol.Inbound) error {
	frame, err := protocol.EncodeInbound(c.codec, msg)
	if err != nil {
		return err
	}
	frameType := websocket.TextMessage
	if c.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return errs.ErrConnClosed
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(frameType, frame); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type(), err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read failed", zap.Error(err))
			}
			_ = c.conn.Close()
			return
		}
		msg, err := protocol.ParseOutbound(c.codec, frame)
		if err != nil {
			c.log.Warn("bad event", zap.Error(err))
			continue
		}
		c.replica.Apply(msg)
		select {
		case c.events <- msg:
		default:
			c.log.Debug("event dropped", zap.String("type", msg.Type))
		}
	}
}
