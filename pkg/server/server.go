// Package server implements the Shadow Room chat server: the accept loop,
// per-connection sessions, command dispatch, message fan-out and shutdown.
package server

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/NicolasHaas/shadowroom/pkg/auth"
	"github.com/NicolasHaas/shadowroom/pkg/directory"
)

// Lifecycle states of a Server.
const (
	stateRunning int32 = iota
	stateShuttingDown
	stateTerminated
)

// Dependencies holds external dependencies for the server.
type Dependencies struct {
	Auth auth.Authenticator
}

// Server is the main chat server.
type Server struct {
	cfg      Config
	auth     auth.Authenticator
	dir      *directory.Directory
	sessions *SessionManager
	metrics  *Metrics

	started atomic.Bool
	state   atomic.Int32

	mu       sync.Mutex
	closing  bool // set before the drain wait; no new connections after this
	listener net.Listener
	httpAddr net.Addr
	httpSrv  *http.Server
	connWG   sync.WaitGroup
	ready    chan struct{}
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	return &Server{
		cfg:      cfg,
		auth:     deps.Auth,
		dir:      directory.New(),
		sessions: NewSessionManager(),
		metrics:  NewMetrics(),
		ready:    make(chan struct{}),
	}
}

// Directory returns the shared user/group directory.
func (s *Server) Directory() *directory.Directory {
	return s.dir
}

// Sessions returns the connection tracker.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Ready is closed once the listeners are bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the chat listener address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the HTTP endpoint address, or nil if disabled.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpAddr
}

// trackConn registers a connection goroutine with the drain wait group.
// It returns false once shutdown has started.
func (s *Server) trackConn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.connWG.Add(1)
	return true
}
