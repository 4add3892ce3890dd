package protocol

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/state"
	"MyLocalBoard/internal/stroke"
)

// Transport delivers outbound messages to a single connection, in order.
// Send must not block on a slow peer.
type Transport interface {
	Send(connID string, msg Outbound) error
}

var nowMillis = func() int64 { return time.Now().UnixMilli() }

type binding struct {
	roomID string
	name   string
}

// Dispatcher applies inbound messages to the sender's room and fans the
// results out. All mutation and fan-out for a room happens inside that
// room's turn, so every member observes broadcasts in log order.
//
// A room's members are exactly the users registered in its session;
// connection ids double as user ids.
type Dispatcher struct {
	rooms     *state.Registry
	out       Transport
	log       *zap.Logger
	tolerance float64

	mu    sync.Mutex
	joins map[string]binding
}

type Option func(*Dispatcher)

// WithSimplifyTolerance re-simplifies incoming strokes before they are
// appended. Zero or negative disables it.
func WithSimplifyTolerance(tol float64) Option {
	return func(d *Dispatcher) { d.tolerance = tol }
}

func NewDispatcher(rooms *state.Registry, out Transport, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		rooms: rooms,
		out:   out,
		log:   logger.Named("dispatch"),
		joins: make(map[string]binding),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Handle processes one inbound message from connID. Messages from a
// single connection must be handled sequentially. Protocol violations are
// reported back to the sender and returned; they never touch room state.
func (d *Dispatcher) Handle(connID string, msg Inbound) error {
	var err error
	if j, ok := msg.(JoinMsg); ok {
		err = d.join(connID, j)
	} else {
		err = d.inRoom(connID, msg)
	}
	if err != nil {
		d.Fail(connID, err)
	}
	return err
}

// Fail tells connID its last message was rejected.
func (d *Dispatcher) Fail(connID string, err error) {
	d.log.Debug("rejected message", zap.String("conn", connID), zap.Error(err))
	payload := ErrorPayload{Code: ErrorCode(err), Message: err.Error()}
	if sendErr := d.out.Send(connID, Outbound{Type: TypeError, Data: payload}); sendErr != nil {
		d.log.Debug("error not delivered", zap.String("conn", connID), zap.Error(sendErr))
	}
}

// Disconnect removes connID from its room, tells the remaining members,
// and drops the room once nobody is left.
func (d *Dispatcher) Disconnect(connID string) {
	d.mu.Lock()
	b, ok := d.joins[connID]
	delete(d.joins, connID)
	d.mu.Unlock()
	if !ok {
		return
	}

	d.rooms.Do(b.roomID, func(s *state.Session) {
		if !s.Leave(connID) {
			return
		}
		d.broadcast(s, Outbound{Type: TypePresenceLeft, Data: PresenceLeft{UserID: connID, Users: s.Users()}}, "")
	})
	released := d.rooms.ReleaseIfEmpty(b.roomID)
	d.log.Info("left",
		zap.String("room", b.roomID),
		zap.String("conn", connID),
		zap.Bool("room_released", released),
	)
}

// Room reports which room connID joined.
func (d *Dispatcher) Room(connID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.joins[connID]
	return b.roomID, ok
}

func (d *Dispatcher) join(connID string, m JoinMsg) error {
	d.mu.Lock()
	if _, ok := d.joins[connID]; ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: connection already in a room", errs.ErrAlreadyJoined)
	}
	d.joins[connID] = binding{roomID: m.RoomID, name: m.UserName}
	d.mu.Unlock()

	var users int
	d.rooms.Do(m.RoomID, func(s *state.Session) {
		snap := s.Join(connID, m.UserName)
		users = len(snap.Users)
		d.send(connID, Outbound{Type: TypeInitState, Data: InitState{
			UserID:     connID,
			User:       snap.User,
			Operations: snap.Operations,
			Users:      snap.Users,
		}})
		d.broadcast(s, Outbound{Type: TypePresenceJoined, Data: PresenceJoined{User: snap.User, Users: snap.Users}}, connID)
	})
	d.log.Info("joined",
		zap.String("room", m.RoomID),
		zap.String("conn", connID),
		zap.Int("users", users),
	)
	return nil
}

func (d *Dispatcher) inRoom(connID string, msg Inbound) error {
	d.mu.Lock()
	b, ok := d.joins[connID]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s before join", errs.ErrNotJoined, msg.Type())
	}

	switch m := msg.(type) {
	case OperationMsg:
		op := d.stamp(connID, b, m.Operation)
		// The author already holds its own copy unless the points were rewritten.
		except := connID
		if len(op.Points) != len(m.Operation.Points) {
			except = ""
		}
		d.rooms.Do(b.roomID, func(s *state.Session) {
			if !s.Apply(op) {
				d.log.Debug("duplicate operation ignored", zap.String("room", b.roomID), zap.String("op", op.ID))
				return
			}
			d.broadcast(s, Outbound{Type: TypeOperation, Data: op}, except)
		})
	case CursorMsg:
		d.rooms.Do(b.roomID, func(s *state.Session) {
			if !s.MoveCursor(connID, state.Point{X: m.X, Y: m.Y}) {
				return
			}
			d.broadcast(s, Outbound{Type: TypeCursor, Data: CursorMoved{UserID: connID, X: m.X, Y: m.Y}}, connID)
		})
	case UndoMsg:
		d.rooms.Do(b.roomID, func(s *state.Session) {
			op, ok := s.Undo()
			if !ok {
				d.log.Debug("nothing to undo", zap.String("room", b.roomID))
				return
			}
			d.broadcast(s, Outbound{Type: TypeUndo, Data: Undone{OperationID: op.ID, Operation: op}}, "")
		})
	case RedoMsg:
		d.rooms.Do(b.roomID, func(s *state.Session) {
			op, ok := s.Redo(m.Operation.ID)
			if !ok {
				d.log.Debug("redo of unknown operation ignored", zap.String("room", b.roomID), zap.String("op", m.Operation.ID))
				return
			}
			d.broadcast(s, Outbound{Type: TypeRedo, Data: op}, "")
		})
	case ClearMsg:
		d.rooms.Do(b.roomID, func(s *state.Session) {
			s.Clear()
			d.broadcast(s, Outbound{Type: TypeClear}, "")
		})
		d.log.Info("cleared", zap.String("room", b.roomID), zap.String("conn", connID))
	default:
		return fmt.Errorf("%w: %s", errs.ErrUnknownMessage, msg.Type())
	}
	return nil
}

// stamp fills the fields the authority owns: authorship always, id and
// creation time when the client left them out.
func (d *Dispatcher) stamp(connID string, b binding, op state.Operation) state.Operation {
	op.UserID = connID
	op.UserName = b.name
	if op.ID == "" {
		op.ID = state.NewOperationID(connID)
	}
	if op.CreatedAt == 0 {
		op.CreatedAt = nowMillis()
	}
	if d.tolerance > 0 {
		op.Points = stroke.Simplify(op.Points, d.tolerance)
	}
	return op
}

// broadcast sends msg to every user in the session except one. It must
// run inside the room's turn.
func (d *Dispatcher) broadcast(s *state.Session, msg Outbound, except string) {
	for _, u := range s.Users() {
		if u.ID == except {
			continue
		}
		d.send(u.ID, msg)
	}
}

func (d *Dispatcher) send(connID string, msg Outbound) {
	if err := d.out.Send(connID, msg); err != nil && !errors.Is(err, errs.ErrConnClosed) {
		d.log.Warn("send failed", zap.String("conn", connID), zap.String("type", msg.Type), zap.Error(err))
	}
}
