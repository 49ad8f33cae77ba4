package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/NicolasHaas/shadowroom/pkg/version"
)

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP shadowroom_build_info Build version.\n# TYPE shadowroom_build_info gauge\nshadowroom_build_info{%s} 1\n", version.Labels())
	writeFloat("shadowroom_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("shadowroom_connections_active", "Current open connections.", "gauge",
		m.ActiveConnections.Load())
	write("shadowroom_connections_total", "Lifetime connections accepted.", "counter",
		m.TotalConnections.Load())
	write("shadowroom_disconnects_total", "Authenticated sessions ended.", "counter",
		m.TotalDisconnects.Load())
	write("shadowroom_users_online", "Registered users.", "gauge",
		int64(s.dir.Len()))
	write("shadowroom_groups", "Existing groups.", "gauge",
		int64(s.dir.GroupCount()))

	write("shadowroom_auth_success_total", "Successful authentication attempts.", "counter",
		m.SuccessfulAuths.Load())
	write("shadowroom_auth_failed_total", "Failed authentication attempts.", "counter",
		m.FailedAuths.Load())
	write("shadowroom_auth_duplicate_total", "Logins rejected because the user was online.", "counter",
		m.DuplicateLogins.Load())

	write("shadowroom_private_messages_total", "Private messages delivered.", "counter",
		m.PrivateMessages.Load())
	write("shadowroom_broadcast_messages_total", "Broadcast commands.", "counter",
		m.BroadcastMessages.Load())
	write("shadowroom_group_messages_total", "Group messages sent.", "counter",
		m.GroupMessages.Load())
	write("shadowroom_outbox_queued_total", "Lines accepted into an outbox.", "counter",
		m.MessagesQueued.Load())
	write("shadowroom_outbox_dropped_total", "Lines dropped on a full outbox.", "counter",
		m.MessagesDropped.Load())

	write("shadowroom_oversized_lines_total", "Command lines over the limit.", "counter",
		m.OversizedLines.Load())
	write("shadowroom_invalid_commands_total", "Unknown actions.", "counter",
		m.InvalidCommands.Load())
	write("shadowroom_groups_created_total", "Groups created.", "counter",
		m.GroupsCreated.Load())
}
