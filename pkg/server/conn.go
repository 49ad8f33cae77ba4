package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/NicolasHaas/shadowroom/pkg/directory"
	"github.com/NicolasHaas/shadowroom/pkg/protocol"
	"github.com/NicolasHaas/shadowroom/pkg/transport"
)

// acceptLoop accepts TCP connections until the listener is closed.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	slog.Info("chat listener accepting", "addr", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept error", "err", err)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if !s.trackConn() {
			_ = conn.Close()
			continue
		}
		go func() {
			defer s.connWG.Done()
			s.serveConn(ctx, transport.NewTCP(conn, s.cfg.WriteTimeout))
		}()
	}
}

// serveConn runs one connection from handshake to close. The caller has
// already registered it with trackConn.
func (s *Server) serveConn(ctx context.Context, conn transport.Conn) {
	sess := newSession(conn, s.cfg.OutboxSize, s.metrics)
	s.sessions.Add(sess)
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	slog.Debug("new connection", "conn", sess.id, "remote", conn.RemoteAddr())

	go sess.writePump()
	defer func() {
		sess.closeOutbox()
		<-sess.writerDone
		s.sessions.Remove(sess.id)
		s.metrics.ActiveConnections.Add(-1)
	}()

	if s.state.Load() != stateRunning {
		sess.Send(protocol.ServerShutdown)
		return
	}

	username, ok := s.login(sess)
	if !ok {
		return
	}
	defer s.logout(sess, username)

	s.commandLoop(ctx, sess, username)
}

// login runs the username/password handshake. One attempt per connection.
func (s *Server) login(sess *Session) (string, bool) {
	conn := sess.conn
	remote := conn.RemoteAddr()

	if s.cfg.LoginTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.LoginTimeout))
	}

	sess.Send(protocol.Welcome(s.cfg.RoomName))
	username, err := conn.ReadLine(s.cfg.MaxLoginLine)
	if err != nil {
		slog.Debug("login aborted reading username", "remote", remote, "err", err)
		return "", false
	}

	sess.Send(protocol.PasswordPrompt)
	password, err := conn.ReadLine(s.cfg.MaxLoginLine)
	if err != nil {
		slog.Debug("login aborted reading password", "remote", remote, "err", err)
		return "", false
	}
	_ = conn.SetReadDeadline(time.Time{})

	if s.auth == nil || !s.auth.Authenticate(username, password) {
		s.metrics.FailedAuths.Add(1)
		slog.Warn("authentication failed", "user", username, "remote", remote)
		sess.Send(protocol.AuthFailed)
		return "", false
	}

	if err := s.dir.Register(username, sess); err != nil {
		if errors.Is(err, directory.ErrAlreadyOnline) {
			s.metrics.DuplicateLogins.Add(1)
			slog.Warn("rejected duplicate login", "user", username, "remote", remote)
			sess.Send(protocol.AlreadyLoggedIn(username))
			return "", false
		}
		slog.Error("register failed", "user", username, "err", err)
		return "", false
	}
	sess.activate(username)
	s.metrics.SuccessfulAuths.Add(1)

	sess.Send(protocol.Banner)
	sess.Send(protocol.Help())
	s.broadcast(protocol.UserJoinedChat(username), sess)

	slog.Info("client authenticated", "user", username, "conn", sess.id, "remote", remote)
	return username, true
}

// commandLoop reads and dispatches commands until /exit, EOF or an error.
func (s *Server) commandLoop(ctx context.Context, sess *Session, username string) {
	for {
		line, err := sess.conn.ReadLine(s.cfg.MaxCommandLine)
		if err != nil {
			if errors.Is(err, protocol.ErrLineTooLong) {
				s.metrics.OversizedLines.Add(1)
				sess.Send(protocol.LineTooLong(s.cfg.MaxCommandLine))
				continue
			}
			switch {
			case ctx.Err() != nil:
			case transport.IsClosedErr(err):
				slog.Info("client disconnected", "user", username, "conn", sess.id)
			default:
				slog.Warn("read error", "user", username, "conn", sess.id, "err", err)
			}
			return
		}

		if exit := s.dispatch(sess, username, protocol.Parse(line)); exit {
			slog.Info("client exited", "user", username, "conn", sess.id)
			return
		}
	}
}

// logout unregisters the session, tells every group it was in, and
// announces the departure to everyone else.
func (s *Server) logout(sess *Session, username string) {
	for _, dep := range s.dir.Unregister(username, sess) {
		s.deliver(dep.Remaining, protocol.MemberLeft(username, dep.Group))
	}
	s.broadcast(protocol.UserLeftChat(username), sess)
	sess.markClosed()
	s.metrics.TotalDisconnects.Add(1)
}
