package dispatch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/tow-dispatch/internal/models"
	"github.com/example/tow-dispatch/internal/observability"
)

// WSSession is one connected driver screen.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) Send(ev models.OfferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// WSRegistry fans offer events out to every connected screen. A session whose
// write fails is closed and dropped.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	logger   *slog.Logger
}

func NewWSRegistry(logger *slog.Logger) *WSRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSRegistry{sessions: make(map[string]*WSSession), logger: logger}
}

func (r *WSRegistry) Add(conn *websocket.Conn) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &WSSession{conn: conn}
	n := len(r.sessions)
	r.mu.Unlock()
	observability.WSSessions.Set(float64(n))
	return id
}

func (r *WSRegistry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		_ = s.conn.Close()
	}
	observability.WSSessions.Set(float64(n))
}

func (r *WSRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// OfferEvent implements offer.Listener.
func (r *WSRegistry) OfferEvent(ev models.OfferEvent) {
	r.mu.RLock()
	targets := make(map[string]*WSSession, len(r.sessions))
	for id, s := range r.sessions {
		targets[id] = s
	}
	r.mu.RUnlock()

	for id, s := range targets {
		if err := s.Send(ev); err != nil {
			r.logger.Warn("ws send failed, dropping session", "session_id", id, "error", err)
			r.Remove(id)
		}
	}
}
