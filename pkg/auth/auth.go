// Package auth holds the credential store used to authenticate chat logins.
package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/NicolasHaas/shadowroom/pkg/crypto"
	"github.com/NicolasHaas/shadowroom/pkg/model"
)

// Authenticator checks a username/password pair.
type Authenticator interface {
	Authenticate(username, password string) bool
}

// Table is an immutable username -> password table loaded once at startup.
type Table struct {
	creds map[string]string
}

var _ Authenticator = (*Table)(nil)

// LoadFile parses a credential file of "username:password" lines.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path from server config
	if err != nil {
		return nil, fmt.Errorf("auth: open credentials: %w", err)
	}
	defer func() { _ = f.Close() }()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("auth: %s: %w", path, err)
	}
	return t, nil
}

// Parse reads "username:password" lines. The first ':' separates the fields,
// so passwords may themselves contain ':'. Lines without a separator are
// skipped and later duplicates replace earlier ones.
func Parse(r io.Reader) (*Table, error) {
	t := &Table{creds: make(map[string]string)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		username, password, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		t.creds[username] = password
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	return t, nil
}

// Authenticate reports whether password exactly matches the stored one.
func (t *Table) Authenticate(username, password string) bool {
	want, ok := t.creds[username]
	if !ok {
		return false
	}
	return crypto.Equal(want, password)
}

// Len returns the number of credentials.
func (t *Table) Len() int {
	return len(t.creds)
}

// Credentials returns all entries sorted by username.
func (t *Table) Credentials() []model.Credential {
	out := make([]model.Credential, 0, len(t.creds))
	for u, p := range t.creds {
		out = append(out, model.Credential{Username: u, Password: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
