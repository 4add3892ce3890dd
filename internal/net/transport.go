package net

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/protocol"
	"MyLocalBoard/internal/state"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler receives what a peer sends. Calls for one peer are sequential.
type Handler interface {
	Handle(connID string, msg protocol.Inbound) error
	Fail(connID string, err error)
	Disconnect(connID string)
}

// Options tune every peer the hub serves.
type Options struct {
	SendBuffer      int
	MaxMessageBytes int64
	// CursorRate caps cursor messages per second; zero disables the cap.
	CursorRate float64
}

// Peer is one websocket connection.
type Peer struct {
	ID     string
	conn   *websocket.Conn
	codec  protocol.Codec
	send   chan protocol.Outbound
	cursor *rate.Limiter

	mu     sync.Mutex
	closed bool
}

// Hub tracks live peers and implements protocol.Transport over them.
type Hub struct {
	opts  Options
	log   *zap.Logger
	peers map[string]*Peer
	mu    sync.RWMutex
}

var _ protocol.Transport = (*Hub)(nil)

func NewHub(opts Options, logger *zap.Logger) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 1 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		opts:  opts,
		log:   logger.Named("hub"),
		peers: make(map[string]*Peer),
	}
}

// Send queues msg for connID. A peer whose queue is full is closed
// rather than allowed to stall the room.
func (h *Hub) Send(connID string, msg protocol.Outbound) error {
	h.mu.RLock()
	p, ok := h.peers[connID]
	h.mu.RUnlock()
	if !ok {
		return errs.ErrConnClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errs.ErrConnClosed
	}
	select {
	case p.send <- msg:
		return nil
	default:
		h.log.Warn("send queue full, dropping peer", zap.String("conn", connID))
		p.closeLocked()
		return fmt.Errorf("%w: send queue full", errs.ErrConnClosed)
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		p.close()
	}
}

// Serve runs conn until it drops or ctx ends. initial, when non-nil, is
// handled before anything read from the wire. Serve blocks and reports
// the disconnect to handler before returning.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, codec protocol.Codec, handler Handler, initial protocol.Inbound) {
	p := &Peer{
		ID:    state.NewUserID(),
		conn:  conn,
		codec: codec,
		send:  make(chan protocol.Outbound, h.opts.SendBuffer),
	}
	if h.opts.CursorRate > 0 {
		burst := int(h.opts.CursorRate)
		if burst < 1 {
			burst = 1
		}
		p.cursor = rate.NewLimiter(rate.Limit(h.opts.CursorRate), burst)
	}
	h.add(p)
	log := h.log.With(zap.String("conn", p.ID), zap.String("remote", conn.RemoteAddr().String()), zap.String("codec", codec.Name()))
	log.Info("peer connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(p, log)
	}()
	go func() {
		select {
		case <-ctx.Done():
			p.close()
		case <-done:
		}
	}()

	if initial == nil || h.dispatch(p, handler, initial, log) {
		h.readPump(p, handler, log)
	}

	handler.Disconnect(p.ID)
	h.remove(p)
	p.close()
	<-done
	log.Info("peer disconnected")
}

func (h *Hub) readPump(p *Peer, handler Handler, log *zap.Logger) {
	p.conn.SetReadLimit(h.opts.MaxMessageBytes)
	_ = p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read failed", zap.Error(err))
			}
			return
		}
		msg, err := protocol.ParseInbound(p.codec, frame)
		if err != nil {
			handler.Fail(p.ID, err)
			continue
		}
		if !h.dispatch(p, handler, msg, log) {
			return
		}
	}
}

// dispatch hands one message to handler. A panic closes the peer.
func (h *Hub) dispatch(p *Peer, handler Handler, msg protocol.Inbound, log *zap.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic",
				zap.Any("reason", r),
				zap.ByteString("stack", debug.Stack()),
				zap.String("type", msg.Type()),
			)
			ok = false
		}
	}()
	if _, isCursor := msg.(protocol.CursorMsg); isCursor && p.cursor != nil && !p.cursor.Allow() {
		return true
	}
	_ = handler.Handle(p.ID, msg)
	return true
}

func (h *Hub) writePump(p *Peer, log *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = p.conn.Close()
	}()
	frameType := websocket.TextMessage
	if p.codec.Binary() {
		frameType = websocket.BinaryMessage
	}
	for {
		select {
		case msg, ok := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			data, err := p.codec.Encode(msg.Type, msg.Data)
			if err != nil {
				log.Error("encode failed", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			if err := p.conn.WriteMessage(frameType, data); err != nil {
				log.Debug("write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.ID] = p
}

func (h *Hub) remove(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p.ID)
}

func (p *Peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

// closeLocked stops the write pump, which then closes the socket and so
// ends the read pump.
func (p *Peer) closeLocked() {
	if p.closed {
		return
	}
	p.closed = true
	close(p.send)
}
