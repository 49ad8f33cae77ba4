package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/NicolasHaas/shadowroom/pkg/auth"
)

const testUsers = "u1:p1\nu2:p2\nu3:p3\n"

type testServer struct {
	srv    *Server
	cancel context.CancelFunc
	done   chan error
}

func startServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(path, []byte(testUsers), 0o600))
	table, err := auth.LoadFile(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.UsersFile = path
	cfg.MetricsLog = 0
	cfg.DrainTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	srv := New(cfg, Dependencies{Auth: table})
	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{srv: srv, cancel: cancel, done: make(chan error, 1)}
	go func() { ts.done <- srv.Serve(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-ts.done:
		t.Fatalf("Serve: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() { ts.stop(t) })
	return ts
}

func (ts *testServer) stop(t *testing.T) {
	t.Helper()
	ts.cancel()
	select {
	case err := <-ts.done:
		require.NoError(t, err)
		ts.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type client struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, ts *testServer) *client {
	t.Helper()
	conn, err := net.Dial("tcp", ts.srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) send(line string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, line+"\n")
	require.NoError(c.t, err)
}

// expect reads lines until one contains substr.
func (c *client) expect(substr string) string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		line, err := c.r.ReadString('\n')
		require.NoError(c.t, err, "waiting for %q", substr)
		if strings.Contains(line, substr) {
			return line
		}
	}
}

// next returns the next line.
func (c *client) next() string {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	line, err := c.r.ReadString('\n')
	require.NoError(c.t, err)
	return line
}

// expectEOF reads until the server closes the connection.
func (c *client) expectEOF() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err := io.Copy(io.Discard, c.r)
	require.NoError(c.t, err)
}

func (c *client) login(user, pass string) {
	c.t.Helper()
	c.expect("Enter your username:")
	c.send(user)
	c.expect("Enter your password:")
	c.send(pass)
	c.expect("Exit the chat")
}

func TestEndToEndGroupConversation(t *testing.T) {
	ts := startServer(t, nil)

	u1 := dial(t, ts)
	u1.login("u1", "p1")
	u2 := dial(t, ts)
	u2.login("u2", "p2")
	u1.expect("u2 has joined the chat!")

	u1.send("/create_group team")
	u1.expect("Group created.")

	u2.send("/join_group team")
	u2.expect("You joined team.")
	u1.expect("u2 joined team.")

	u1.send("/group_msg team hi")
	u2.expect("[u1 on Group team]: hi")

	u2.send("/msg u1 psst")
	u1.expect("[u2]: psst")

	u2.send("/exit")
	u2.expectEOF()
	u1.expect("u2 left team.")
	u1.expect("u2 has left the chat!")

	u1.send("/list_group_members team")
	line := u1.next()
	require.Contains(t, line, "u1")
	require.NotContains(t, line, "u2")
}

func TestEndToEndBroadcastExcludesSender(t *testing.T) {
	ts := startServer(t, nil)

	u1 := dial(t, ts)
	u1.login("u1", "p1")
	u2 := dial(t, ts)
	u2.login("u2", "p2")
	u1.expect("u2 has joined the chat!")

	u1.send("/broadcast hello room")
	u2.expect("[u1 on broadcast]: hello room")

	// The next thing u1 sees is the reply to its own command, not the broadcast.
	u1.send("/list_all_groups")
	require.Contains(t, u1.next(), "No groups yet.")
}

func TestEndToEndAuthFailure(t *testing.T) {
	ts := startServer(t, nil)

	c := dial(t, ts)
	c.expect("Enter your username:")
	c.send("u1")
	c.expect("Enter your password:")
	c.send("wrong")
	c.expect("Authentication failed.")
	c.expectEOF()

	require.Equal(t, int64(1), ts.srv.Metrics().FailedAuths.Load())
	require.Equal(t, 0, ts.srv.Directory().Len())
}

func TestEndToEndDuplicateLogin(t *testing.T) {
	ts := startServer(t, nil)

	first := dial(t, ts)
	first.login("u1", "p1")

	second := dial(t, ts)
	second.expect("Enter your username:")
	second.send("u1")
	second.expect("Enter your password:")
	second.send("p1")
	second.expect("u1 is already logged in.")
	second.expectEOF()

	first.send("/list_all_members")
	first.expect("u1")
	require.Equal(t, int64(1), ts.srv.Metrics().DuplicateLogins.Load())
}

func TestEndToEndOversizedLine(t *testing.T) {
	ts := startServer(t, nil)

	c := dial(t, ts)
	c.login("u1", "p1")

	c.send("/broadcast " + strings.Repeat("a", 3000))
	c.expect("Message too long (max 2048 bytes).")

	c.send("/list_all_members")
	c.expect("u1")
	require.Equal(t, int64(1), ts.srv.Metrics().OversizedLines.Load())
}

func TestEndToEndCRLF(t *testing.T) {
	ts := startServer(t, nil)

	c := dial(t, ts)
	c.expect("Enter your username:")
	_, err := io.WriteString(c.conn, "u1\r\np1\r\n")
	require.NoError(t, err)
	c.expect("List of available actions")

	_, err = io.WriteString(c.conn, "/exit\r\n")
	require.NoError(t, err)
	c.expectEOF()
}

func TestEndToEndSeededGroups(t *testing.T) {
	groups := filepath.Join(t.TempDir(), "groups.yaml")
	require.NoError(t, os.WriteFile(groups, []byte("groups:\n  - name: ops\n  - name: dev\n"), 0o600))

	ts := startServer(t, func(c *Config) { c.GroupsFile = groups })

	c := dial(t, ts)
	c.login("u1", "p1")
	c.send("/list_all_groups")
	c.expect("dev")
	c.expect("ops")

	c.send("/join_group ops")
	c.expect("You joined ops.")
}

func TestShutdownClosesClients(t *testing.T) {
	ts := startServer(t, nil)

	u1 := dial(t, ts)
	u1.login("u1", "p1")
	u2 := dial(t, ts)
	u2.login("u2", "p2")
	pending := dial(t, ts)
	pending.expect("Enter your username:")

	ts.stop(t)

	for _, c := range []*client{u1, u2, pending} {
		c.expect("Server is shutting down.")
		c.expectEOF()
	}

	_, err := net.DialTimeout("tcp", ts.srv.Addr().String(), time.Second)
	require.Error(t, err)
	require.Equal(t, 0, ts.srv.Sessions().Count())
}

func TestHTTPEndpoints(t *testing.T) {
	ts := startServer(t, func(c *Config) { c.HTTPAddr = "127.0.0.1:0" })

	c := dial(t, ts)
	c.login("u1", "p1")

	base := "http://" + ts.srv.HTTPAddr().String()

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "shadowroom_users_online 1")
	require.Contains(t, string(body), "shadowroom_auth_success_total 1")

	resp, err = http.Get(base + "/ws")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketGateway(t *testing.T) {
	ts := startServer(t, func(c *Config) {
		c.HTTPAddr = "127.0.0.1:0"
		c.WebSocket = true
	})

	tcp := dial(t, ts)
	tcp.login("u1", "p1")

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ts.srv.HTTPAddr().String()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	expectFrame := func(substr string) {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
		for {
			_, data, err := ws.ReadMessage()
			require.NoError(t, err, "waiting for %q", substr)
			if strings.Contains(string(data), substr) {
				return
			}
		}
	}
	sendFrame := func(line string) {
		t.Helper()
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(line)))
	}

	expectFrame("Enter your username:")
	sendFrame("u2")
	expectFrame("Enter your password:")
	sendFrame("p2")
	expectFrame("List of available actions")
	tcp.expect("u2 has joined the chat!")

	tcp.send("/msg u2 over the wire")
	expectFrame("[u1]: over the wire")

	sendFrame("/broadcast back at you")
	tcp.expect("[u2 on broadcast]: back at you")
}

func TestOriginAllowed(t *testing.T) {
	allowed, allowAll := normalizeOrigins([]string{"https://Chat.Example.com", "not a url", " "})
	require.False(t, allowAll)
	require.Equal(t, []string{"https://chat.example.com"}, allowed)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://chat.example.com", true},
		{"HTTPS://CHAT.EXAMPLE.COM", true},
		{"https://evil.example.com", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, originAllowed(tt.origin, allowed, allowAll), "origin %q", tt.origin)
	}

	_, allowAll = normalizeOrigins(nil)
	require.True(t, allowAll)
	_, allowAll = normalizeOrigins([]string{"*"})
	require.True(t, allowAll)
}
