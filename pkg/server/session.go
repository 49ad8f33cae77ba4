package server

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NicolasHaas/shadowroom/pkg/directory"
	"github.com/NicolasHaas/shadowroom/pkg/model"
	"github.com/NicolasHaas/shadowroom/pkg/transport"
)

// Session is one client connection. The reading goroutine owns it; the
// Directory only references it as a Recipient. All outbound text goes
// through a bounded outbox drained by a single writer goroutine.
type Session struct {
	id          string
	conn        transport.Conn
	connectedAt time.Time
	metrics     *Metrics

	mu       sync.Mutex
	username string
	state    model.SessionState
	closed   bool // outbox no longer accepts messages
	out      chan string

	writerDone chan struct{}
}

var _ directory.Recipient = (*Session)(nil)

func newSession(conn transport.Conn, outboxSize int, m *Metrics) *Session {
	return &Session{
		id:          uuid.NewString(),
		conn:        conn,
		connectedAt: time.Now(),
		metrics:     m,
		state:       model.StateHandshake,
		out:         make(chan string, outboxSize),
		writerDone:  make(chan struct{}),
	}
}

// Send queues msg without blocking. It returns false if the session is
// closed or its outbox is full; a full outbox drops the message.
func (s *Session) Send(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.out <- msg:
		s.metrics.MessagesQueued.Add(1)
		return true
	default:
		s.metrics.MessagesDropped.Add(1)
		slog.Warn("outbox full, dropping message", "conn", s.id, "user", s.username)
		return false
	}
}

// closeOutbox stops accepting messages. The writer flushes what is queued
// and then closes the connection.
func (s *Session) closeOutbox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.out)
	}
}

// forceClose closes the connection without waiting for the outbox.
func (s *Session) forceClose() {
	_ = s.conn.Close()
}

// writePump writes queued messages until the outbox is closed. After a
// write error the connection is closed, which also ends the reader, and the
// rest of the queue is discarded.
func (s *Session) writePump() {
	defer close(s.writerDone)
	defer func() { _ = s.conn.Close() }()

	failed := false
	for msg := range s.out {
		if failed {
			continue
		}
		if err := s.conn.WriteLine(msg); err != nil {
			failed = true
			if !transport.IsClosedErr(err) {
				slog.Debug("write failed", "conn", s.id, "user", s.Username(), "err", err)
			}
			_ = s.conn.Close()
		}
	}
}

func (s *Session) activate(username string) {
	s.mu.Lock()
	s.username = username
	s.state = model.StateActive
	s.mu.Unlock()
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.state = model.StateClosed
	s.mu.Unlock()
}

// Username returns the authenticated username, or "" during the handshake.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Info returns a snapshot of the session.
func (s *Session) Info() model.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.SessionInfo{
		ID:          s.id,
		Username:    s.username,
		RemoteAddr:  s.conn.RemoteAddr(),
		State:       s.state,
		ConnectedAt: s.connectedAt,
	}
}

// SessionManager tracks every live connection, authenticated or not, so
// shutdown can reach all of them.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // conn ID -> session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Add starts tracking a session.
func (sm *SessionManager) Add(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.id] = s
}

// Get retrieves a session by ID.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Remove stops tracking a session.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, id)
}

// Count returns the number of live connections.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns all live sessions (snapshot).
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	result := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		result = append(result, s)
	}
	return result
}
