package model

import "testing"

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid simple", "alice", nil},
		{"valid with numbers", "user123", nil},
		{"valid punctuation", "a.b-c_d", nil},
		{"valid unicode", "ñoño", nil},
		{"empty", "", ErrUsernameEmpty},
		{"contains colon", "al:ice", ErrUsernameInvalidChars},
		{"contains space", "has space", ErrUsernameInvalidChars},
		{"tab character", "user\tname", ErrUsernameInvalidChars},
		{"newline", "user\nname", ErrUsernameInvalidChars},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.input)
			if err != tt.wantErr {
				t.Errorf("ValidateUsername(%q) = %v, want %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSessionStateString(t *testing.T) {
	tests := []struct {
		state SessionState
		want  string
		valid bool
	}{
		{StateHandshake, "handshake", true},
		{StateActive, "active", true},
		{StateClosed, "closed", true},
		{SessionState(-1), "unknown", false},
		{SessionState(7), "unknown", false},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("SessionState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
		if got := tt.state.Valid(); got != tt.valid {
			t.Errorf("SessionState(%d).Valid() = %v, want %v", tt.state, got, tt.valid)
		}
	}
}
