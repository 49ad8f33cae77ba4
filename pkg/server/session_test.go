package server

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/shadowroom/pkg/model"
)

func TestSessionSendDropsWhenFull(t *testing.T) {
	m := NewMetrics()
	sess := newSession(&recordConn{}, 2, m)

	for i, want := range []bool{true, true, false} {
		if got := sess.Send("x"); got != want {
			t.Fatalf("Send #%d = %v, want %v", i, got, want)
		}
	}
	if got := m.MessagesQueued.Load(); got != 2 {
		t.Fatalf("MessagesQueued = %d, want 2", got)
	}
	if got := m.MessagesDropped.Load(); got != 1 {
		t.Fatalf("MessagesDropped = %d, want 1", got)
	}
}

func TestSessionSendAfterClose(t *testing.T) {
	sess := newSession(&recordConn{}, 4, NewMetrics())
	sess.closeOutbox()
	sess.closeOutbox()
	if sess.Send("late") {
		t.Fatal("Send succeeded on a closed outbox")
	}
}

func TestWritePumpFlushesInOrder(t *testing.T) {
	conn := &recordConn{}
	sess := newSession(conn, 8, NewMetrics())
	go sess.writePump()

	want := []string{"one", "two", "three"}
	for _, msg := range want {
		sess.Send(msg)
	}
	sess.closeOutbox()
	<-sess.writerDone

	if diff := cmp.Diff(want, conn.written()); diff != "" {
		t.Fatalf("written mismatch (-want +got):\n%s", diff)
	}
	conn.mu.Lock()
	closed := conn.closed
	conn.mu.Unlock()
	if !closed {
		t.Fatal("connection not closed after outbox drained")
	}
}

func TestSessionInfo(t *testing.T) {
	sess := newSession(&recordConn{}, 1, NewMetrics())
	if got := sess.Info().State; got != model.StateHandshake {
		t.Fatalf("initial state = %v, want %v", got, model.StateHandshake)
	}
	sess.activate("alice")
	info := sess.Info()
	if info.Username != "alice" || info.State != model.StateActive {
		t.Fatalf("after activate = %+v", info)
	}
	sess.markClosed()
	if got := sess.Info().State; got != model.StateClosed {
		t.Fatalf("state = %v, want %v", got, model.StateClosed)
	}
}

func TestSessionManager(t *testing.T) {
	sm := NewSessionManager()
	a := newSession(&recordConn{}, 1, NewMetrics())
	b := newSession(&recordConn{}, 1, NewMetrics())
	sm.Add(a)
	sm.Add(b)

	if sm.Count() != 2 {
		t.Fatalf("Count = %d, want 2", sm.Count())
	}
	if sm.Get(a.id) != a {
		t.Fatal("Get returned the wrong session")
	}
	sm.Remove(a.id)
	if sm.Get(a.id) != nil || sm.Count() != 1 {
		t.Fatalf("after Remove: Count = %d", sm.Count())
	}
	if all := sm.All(); len(all) != 1 || all[0] != b {
		t.Fatalf("All = %v", all)
	}
}
