package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime connections accepted (TCP and WebSocket)
	ActiveConnections atomic.Int64 // current open connections
	FailedAuths       atomic.Int64 // failed authentication attempts
	SuccessfulAuths   atomic.Int64 // successful authentication attempts
	DuplicateLogins   atomic.Int64 // logins rejected because the user was online
	TotalDisconnects  atomic.Int64 // authenticated sessions ended

	// Message counters
	PrivateMessages   atomic.Int64 // /msg delivered to a registered user
	BroadcastMessages atomic.Int64 // /broadcast commands
	GroupMessages     atomic.Int64 // /group_msg to an existing group
	MessagesQueued    atomic.Int64 // lines accepted into an outbox
	MessagesDropped   atomic.Int64 // lines dropped on a full outbox

	// Protocol counters
	OversizedLines  atomic.Int64 // command lines over the limit
	InvalidCommands atomic.Int64 // unknown actions

	GroupsCreated atomic.Int64 // groups created during this run, seeded ones included
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulAuths   int64 `json:"successful_auths"`
	FailedAuths       int64 `json:"failed_auths"`
	DuplicateLogins   int64 `json:"duplicate_logins"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	PrivateMessages   int64 `json:"private_messages"`
	BroadcastMessages int64 `json:"broadcast_messages"`
	GroupMessages     int64 `json:"group_messages"`
	MessagesQueued    int64 `json:"messages_queued"`
	MessagesDropped   int64 `json:"messages_dropped"`

	OversizedLines  int64 `json:"oversized_lines"`
	InvalidCommands int64 `json:"invalid_commands"`
	GroupsCreated   int64 `json:"groups_created"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		SuccessfulAuths:   m.SuccessfulAuths.Load(),
		FailedAuths:       m.FailedAuths.Load(),
		DuplicateLogins:   m.DuplicateLogins.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		PrivateMessages:   m.PrivateMessages.Load(),
		BroadcastMessages: m.BroadcastMessages.Load(),
		GroupMessages:     m.GroupMessages.Load(),
		MessagesQueued:    m.MessagesQueued.Load(),
		MessagesDropped:   m.MessagesDropped.Load(),
		OversizedLines:    m.OversizedLines.Load(),
		InvalidCommands:   m.InvalidCommands.Load(),
		GroupsCreated:     m.GroupsCreated.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"private_msgs", s.PrivateMessages,
		"broadcast_msgs", s.BroadcastMessages,
		"group_msgs", s.GroupMessages,
		"dropped", s.MessagesDropped,
	)
}

// RunPeriodicLog logs a summary every interval until ctx is cancelled.
func (m *Metrics) RunPeriodicLog(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.LogSummary()
		}
	}
}
