package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/shadowroom/pkg/transport"
)

// newHTTPHandler builds the mux for /metrics, /healthz and, when enabled, /ws.
func (s *Server) newHTTPHandler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.cfg.WebSocket {
		mux.HandleFunc("/ws", s.handleWebSocket(ctx))
	}
	return mux
}

// serveHTTP serves on ln until shutdown closes srv.
func (s *Server) serveHTTP(srv *http.Server, ln net.Listener) error {
	slog.Info("HTTP listening", "addr", ln.Addr().String(), "websocket", s.cfg.WebSocket)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleWebSocket upgrades the request and runs the chat protocol over it,
// one text frame per line.
func (s *Server) handleWebSocket(ctx context.Context) http.HandlerFunc {
	allowed, allowAll := normalizeOrigins(s.cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowed, allowAll)
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.trackConn() {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		defer s.connWG.Done()

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		s.serveConn(ctx, transport.NewWebSocket(ws, r.RemoteAddr, s.cfg.WriteTimeout))
	}
}

// normalizeOrigins lowercases scheme://host entries. An empty list or "*"
// allows every origin.
func normalizeOrigins(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, true
	}
	normalized := make([]string, 0, len(origins))
	allowAll := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
			continue
		}
		n, ok := normalizeOrigin(o)
		if !ok {
			slog.Warn("ignoring invalid allowed origin", "origin", o)
			continue
		}
		normalized = append(normalized, n)
	}
	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// originAllowed checks a request's Origin header. Requests without one come
// from non-browser clients and are accepted.
func originAllowed(origin string, allowed []string, allowAll bool) bool {
	if allowAll || origin == "" {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == n {
			return true
		}
	}
	return false
}
