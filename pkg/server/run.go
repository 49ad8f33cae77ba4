package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NicolasHaas/shadowroom/pkg/protocol"
)

// Run starts the server and blocks until SIGINT or SIGTERM has been handled.
func (s *Server) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Serve binds the listeners and serves until ctx is cancelled, then shuts
// down gracefully. It returns nil after an orderly shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if s.auth == nil {
		return fmt.Errorf("server: missing authenticator dependency")
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server: already started")
	}

	if s.cfg.GroupsFile != "" {
		groups, err := LoadGroupsFromYAML(s.cfg.GroupsFile)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		s.seedGroups(groups)
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.cfg.ListenAddr, err)
	}

	var httpLn net.Listener
	if s.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("server: listen http %s: %w", s.cfg.HTTPAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.listener = ln
	if httpLn != nil {
		s.httpAddr = httpLn.Addr()
		s.httpSrv = &http.Server{
			Handler:           s.newHTTPHandler(gctx),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	srv := s.httpSrv
	s.mu.Unlock()
	close(s.ready)

	slog.Info("Shadow Room server running", "addr", ln.Addr().String(), "room", s.cfg.RoomName)

	g.Go(func() error { return s.acceptLoop(gctx, ln) })
	if srv != nil {
		g.Go(func() error { return s.serveHTTP(srv, httpLn) })
	}
	g.Go(func() error { return s.metrics.RunPeriodicLog(gctx, s.cfg.MetricsLog) })
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	return g.Wait()
}

// shutdown stops accepting, tells every session the server is going away,
// waits up to DrainTimeout for them to finish and force-closes the rest.
func (s *Server) shutdown() {
	if !s.state.CompareAndSwap(stateRunning, stateShuttingDown) {
		return
	}
	slog.Info("shutting down gracefully", "sessions", s.sessions.Count())

	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	for _, sess := range s.sessions.All() {
		sess.Send(protocol.ServerShutdown)
		sess.closeOutbox()
	}

	drained := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(s.cfg.DrainTimeout):
		remaining := s.sessions.All()
		slog.Warn("drain timeout, closing remaining connections", "count", len(remaining))
		for _, sess := range remaining {
			sess.forceClose()
		}
		<-drained
	}

	s.mu.Lock()
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
	s.mu.Unlock()

	s.state.Store(stateTerminated)
	slog.Info("Server shutdown complete")
}
