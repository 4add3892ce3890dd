// Package server exposes the room authority over HTTP: the websocket sync
// endpoint plus read-only room introspection and export.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"MyLocalBoard/internal/errs"
	"MyLocalBoard/internal/export"
	lbnet "MyLocalBoard/internal/net"
	"MyLocalBoard/internal/protocol"
	"MyLocalBoard/internal/state"
)

type Server struct {
	rooms      *state.Registry
	hub        *lbnet.Hub
	dispatcher *protocol.Dispatcher
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

func New(rooms *state.Registry, hub *lbnet.Hub, dispatcher *protocol.Dispatcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		rooms:      rooms,
		hub:        hub,
		dispatcher: dispatcher,
		log:        logger.Named("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Boards are shared by link on the local network; any page may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed, access-logged handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.health)
	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.sync)
	r.Methods(http.MethodGet).Path("/rooms").HandlerFunc(s.listRooms)
	r.Methods(http.MethodGet).Path("/rooms/{room}").HandlerFunc(s.getRoom)
	r.Methods(http.MethodGet).Path("/rooms/{room}/export.pdf").HandlerFunc(s.exportPDF)
	r.Methods(http.MethodGet).Path("/rooms/{room}/export.txt").HandlerFunc(s.exportSummary)
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Debug("handled",
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
			zap.Int("status", m.Code),
			zap.Duration("duration", m.Duration),
			zap.Int64("bytes", m.Written),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// sync upgrades to a websocket and serves it until it closes. A room query
// parameter joins that room before anything is read from the socket.
func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	codec, err := protocol.CodecByName(q.Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var initial protocol.Inbound
	if room := q.Get("room"); room != "" {
		join, err := protocol.NewJoin(room, q.Get("name"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		initial = join
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("failed to upgrade", zap.Error(err))
		return
	}
	s.hub.Serve(r.Context(), conn, codec, s.dispatcher, initial)
}

type roomList struct {
	Count int      `json:"count"`
	Rooms []string `json:"rooms"`
}

type roomInfo struct {
	ID         string `json:"id"`
	Users      int    `json:"users"`
	Operations int    `json:"operations"`
}

func (s *Server) listRooms(w http.ResponseWriter, _ *http.Request) {
	ids := s.rooms.List()
	s.writeJSON(w, roomList{Count: len(ids), Rooms: ids})
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	info := roomInfo{ID: mux.Vars(r)["room"]}
	if !s.inspect(w, info.ID, func(sess *state.Session) {
		info.Users = sess.UserCount()
		info.Operations = sess.Len()
	}) {
		return
	}
	s.writeJSON(w, info)
}

func (s *Server) exportPDF(w http.ResponseWriter, r *http.Request) {
	var ops []state.Operation
	if !s.inspect(w, mux.Vars(r)["room"], func(sess *state.Session) { ops = sess.Operations() }) {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if err := export.PDF(w, ops); err != nil {
		s.log.Error("pdf export failed", zap.Error(err))
	}
}

func (s *Server) exportSummary(w http.ResponseWriter, r *http.Request) {
	room := mux.Vars(r)["room"]
	var ops []state.Operation
	if !s.inspect(w, room, func(sess *state.Session) { ops = sess.Operations() }) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := export.Summary(w, room, ops); err != nil {
		s.log.Error("summary export failed", zap.Error(err))
	}
}

// inspect runs fn in the turn of an existing room. It never creates a room
// and answers 404 itself when there is none.
func (s *Server) inspect(w http.ResponseWriter, id string, fn func(*state.Session)) bool {
	room, ok := s.rooms.Lookup(id)
	if ok {
		err := room.Do(fn)
		if errors.Is(err, errs.ErrRoomReleased) {
			ok = false
		}
	}
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
	}
	return ok
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to write response", zap.Error(err))
	}
}
