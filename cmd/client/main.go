package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"

	"github.com/NicolasHaas/shadowroom/pkg/logging"
)

func main() {
	addr := flag.String("addr", "localhost:12345", "Chat server address")
	flag.Parse()

	// Default to "info"; override with SHADOWROOM_LOG_LEVEL env var (debug, info, warn, error).
	level := "info"
	if v := os.Getenv("SHADOWROOM_LOG_LEVEL"); v != "" {
		level = v
	}
	format := "text"
	if v := os.Getenv("SHADOWROOM_LOG_FORMAT"); v != "" {
		format = v
	}
	_ = logging.Setup(logging.Options{
		Level:  level,
		Format: format,
		Output: os.Stderr,
	})

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		slog.Error("connect", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer conn.Close()
	slog.Debug("connected", "addr", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := io.Copy(os.Stdout, conn); err != nil {
			slog.Debug("read from server", "err", err)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if _, err := fmt.Fprintln(conn, scanner.Text()); err != nil {
				slog.Debug("write to server", "err", err)
				return
			}
		}
		// stdin closed: end the session like /exit would.
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "Disconnected.")
}
