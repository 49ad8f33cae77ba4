package model

// SessionState is the lifecycle state of a connection.
type SessionState int

const (
	StateHandshake SessionState = iota // prompting for username/password
	StateActive                        // authenticated and registered
	StateClosed                        // unregistered, connection closed
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is a known state.
func (s SessionState) Valid() bool {
	return s >= StateHandshake && s <= StateClosed
}
