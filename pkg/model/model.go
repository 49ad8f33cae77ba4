// Package model defines the core domain types for Shadow Room.
package model

import "time"

// Credential is one username/password pair from the credential source.
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"-"`
}

// Group is a group definition from configuration. Membership itself lives
// only in memory.
type Group struct {
	Name string `yaml:"name"`
}

// SessionInfo is a read-only view of a live connection, used for logging and metrics.
type SessionInfo struct {
	ID          string
	Username    string // empty until authenticated
	RemoteAddr  string
	State       SessionState
	ConnectedAt time.Time
}
