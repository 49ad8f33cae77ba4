// Package transport adapts byte streams and WebSocket connections to the
// line-oriented Conn used by the chat server.
package transport

import (
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/shadowroom/pkg/protocol"
)

// Conn is one client connection carrying text lines in both directions.
type Conn interface {
	// ReadLine blocks for the next line. It returns protocol.ErrLineTooLong
	// for oversized lines and io.EOF when the peer has closed.
	ReadLine(limit int) (string, error)
	// WriteLine sends one message followed by a line terminator.
	WriteLine(msg string) error
	// SetReadDeadline bounds the next reads; the zero time clears it.
	SetReadDeadline(t time.Time) error
	Close() error
	RemoteAddr() string
}

// TCP is a Conn over a stream socket.
type TCP struct {
	conn         net.Conn
	lines        *protocol.LineReader
	writeTimeout time.Duration
}

// NewTCP wraps c. A zero writeTimeout disables write deadlines.
func NewTCP(c net.Conn, writeTimeout time.Duration) *TCP {
	return &TCP{
		conn:         c,
		lines:        protocol.NewLineReader(c),
		writeTimeout: writeTimeout,
	}
}

func (t *TCP) ReadLine(limit int) (string, error) {
	return t.lines.ReadLine(limit)
}

func (t *TCP) WriteLine(msg string) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(t.conn, msg+"\n")
	return err
}

func (t *TCP) SetReadDeadline(d time.Time) error { return t.conn.SetReadDeadline(d) }
func (t *TCP) Close() error                      { return t.conn.Close() }
func (t *TCP) RemoteAddr() string                { return t.conn.RemoteAddr().String() }

// maxFrameSize caps a single WebSocket frame regardless of the line limit.
const maxFrameSize = 64 * 1024

// WebSocket is a Conn where each text frame is one line.
type WebSocket struct {
	conn         *websocket.Conn
	remote       string
	writeTimeout time.Duration
}

// NewWebSocket wraps an upgraded connection. remote is the client address
// reported by the HTTP request.
func NewWebSocket(c *websocket.Conn, remote string, writeTimeout time.Duration) *WebSocket {
	c.SetReadLimit(maxFrameSize)
	return &WebSocket{conn: c, remote: remote, writeTimeout: writeTimeout}
}

func (w *WebSocket) ReadLine(limit int) (string, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", io.EOF
		}
		if errors.Is(err, websocket.ErrReadLimit) {
			return "", protocol.ErrLineTooLong
		}
		return "", err
	}
	line := strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
	if len(line) > limit {
		return "", protocol.ErrLineTooLong
	}
	return line, nil
}

func (w *WebSocket) WriteLine(msg string) error {
	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (w *WebSocket) SetReadDeadline(d time.Time) error { return w.conn.SetReadDeadline(d) }
func (w *WebSocket) RemoteAddr() string                { return w.remote }

// Close sends a best-effort close frame and closes the socket.
func (w *WebSocket) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

// IsClosedErr reports whether err is the expected result of reading from or
// writing to a connection that has been closed by either side.
func IsClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "use of closed network connection") ||
		strings.Contains(s, "connection reset by peer") ||
		strings.Contains(s, "broken pipe")
}
