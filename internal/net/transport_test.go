package net

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/protocol"
)

const waitFor = 2 * time.Second

type recorder struct {
	mu           sync.Mutex
	handled      []protocol.Inbound
	failed       []error
	disconnected []string
	panicOn      string
}

func (r *recorder) Handle(_ string, msg protocol.Inbound) error {
	if msg.Type() == r.panicOn {
		panic("boom")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handled = append(r.handled, msg)
	return nil
}

func (r *recorder) Fail(_ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func (r *recorder) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, connID)
}

func (r *recorder) counts() (handled, failed, disconnected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handled), len(r.failed), len(r.disconnected)
}

func serveHub(t *testing.T, hub *Hub, h Handler, initial protocol.Inbound) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(r.Context(), conn, protocol.JSONCodec{}, h, initial)
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(hub.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_DeliversFramesAndReportsDisconnect(t *testing.T) {
	t.Parallel()
	hub := NewHub(Options{}, zaptest.NewLogger(t))
	rec := &recorder{}
	conn := serveHub(t, hub, rec, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"undo"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"nope"}`)))
	require.Eventually(t, func() bool {
		h, f, _ := rec.counts()
		return h == 1 && f == 1
	}, waitFor, 10*time.Millisecond)
	require.Equal(t, 1, hub.Count())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		_, _, d := rec.counts()
		return d == 1 && hub.Count() == 0
	}, waitFor, 10*time.Millisecond)
}

func TestHub_SendWritesEncodedFrame(t *testing.T) {
	t.Parallel()
	hub := NewHub(Options{}, zaptest.NewLogger(t))
	rec := &recorder{}
	conn := serveHub(t, hub, rec, protocol.ClearMsg{})

	require.Eventually(t, func() bool { h, _, _ := rec.counts(); return h == 1 }, waitFor, 10*time.Millisecond)

	hub.mu.RLock()
	var id string
	for k := range hub.peers {
		id = k
	}
	hub.mu.RUnlock()
	require.NoError(t, hub.Send(id, protocol.Outbound{Type: protocol.TypeError, Data: protocol.ErrorPayload{Code: "malformed", Message: "x"}}))

	_ = conn.SetReadDeadline(time.Now().Add(waitFor))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"error","data":{"code":"malformed","message":"x"}}`, string(frame))
}

func TestHub_SendToUnknownPeer(t *testing.T) {
	t.Parallel()
	hub := NewHub(Options{}, zaptest.NewLogger(t))
	require.ErrorIs(t, hub.Send("nobody", protocol.Outbound{Type: protocol.TypeClear}), errs.ErrConnClosed)
}

func TestHub_CursorRateLimited(t *testing.T) {
	t.Parallel()
	hub := NewHub(Options{CursorRate: 1}, zaptest.NewLogger(t))
	rec := &recorder{}
	conn := serveHub(t, hub, rec, nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"cursor","data":{"x":1,"y":2}}`)))
	}
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"clear"}`)))

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		n := len(rec.handled)
		return n > 0 && rec.handled[n-1].Type() == protocol.TypeClear
	}, waitFor, 10*time.Millisecond)
	h, _, _ := rec.counts()
	require.Less(t, h, 21)
}

func TestHub_PanicClosesPeer(t *testing.T) {
	t.Parallel()
	hub := NewHub(Options{}, zaptest.NewLogger(t))
	rec := &recorder{panicOn: protocol.TypeUndo}
	conn := serveHub(t, hub, rec, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"undo"}`)))
	require.Eventually(t, func() bool {
		_, _, d := rec.counts()
		return d == 1
	}, waitFor, 10*time.Millisecond)
}

func TestHub_ServeStopsWithContext(t *testing.T) {
	t.Parallel()
	hub := NewHub(Options{}, zaptest.NewLogger(t))
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	upgrader := websocket.Upgrader{}
	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(ctx, conn, protocol.JSONCodec{}, rec, nil)
		close(done)
	}))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	cancel()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Serve did not return after cancel")
	}
}
