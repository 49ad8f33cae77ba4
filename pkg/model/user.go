package model

import (
	"errors"
	"strings"
)

var (
	ErrUsernameEmpty        = errors.New("username must not be empty")
	ErrUsernameInvalidChars = errors.New("username must not contain ':' or whitespace")
)

// ValidateUsername checks that a username can be stored as a credential key:
// non-empty, no ':' separator and no whitespace.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrUsernameEmpty
	}
	if strings.ContainsAny(name, ": \t\r\n") {
		return ErrUsernameInvalidChars
	}
	return nil
}
