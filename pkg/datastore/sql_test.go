package datastore_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/NicolasHaas/shadowroom/pkg/datastore"
	"github.com/NicolasHaas/shadowroom/pkg/model"
)

func NewTestSqlConn(t *testing.T) (*datastore.ProviderFactory, error) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	st, err := datastore.NewProviderFactory(dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore_test: failed to open db: %w", err)
	}

	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			fmt.Printf("Error closing database: %v\n", err)
		}
	})

	return st, nil
}

func TestPutCredentialAndAuthenticate(t *testing.T) {
	store, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	if err := store.NonTx().PutCredential(model.Credential{Username: "alice", Password: "pa:ss"}); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}

	if !store.Authenticate("alice", "pa:ss") {
		t.Errorf("Authenticate rejected the stored password")
	}
	if store.Authenticate("alice", "pa") {
		t.Errorf("Authenticate accepted a wrong password")
	}
	if store.Authenticate("bob", "pa:ss") {
		t.Errorf("Authenticate accepted an unknown user")
	}

	salt, hash, err := store.NonTx().GetPasswordHash("alice")
	if err != nil {
		t.Fatalf("GetPasswordHash: %v", err)
	}
	if len(salt) == 0 || len(hash) == 0 {
		t.Fatalf("GetPasswordHash: empty salt or hash")
	}
	if string(hash) == "pa:ss" {
		t.Fatalf("password stored in plaintext")
	}
}

func TestPutCredentialReplaces(t *testing.T) {
	store, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	st := store.NonTx()
	if err := st.PutCredential(model.Credential{Username: "dave", Password: "first"}); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
	if err := st.PutCredential(model.Credential{Username: "dave", Password: "second"}); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}

	if store.Authenticate("dave", "first") {
		t.Errorf("old password still accepted")
	}
	if !store.Authenticate("dave", "second") {
		t.Errorf("new password rejected")
	}
	n, err := st.CountUsers()
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 1 {
		t.Errorf("CountUsers = %d, want 1", n)
	}
}

func TestPutCredentialValidation(t *testing.T) {
	store, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	tcases := map[string]struct {
		username string
		wantErr  error
	}{
		"empty":       {"", model.ErrUsernameEmpty},
		"colon":       {"a:b", model.ErrUsernameInvalidChars},
		"whitespace":  {"a b", model.ErrUsernameInvalidChars},
		"valid plain": {"ok", nil},
	}
	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			err := store.NonTx().PutCredential(model.Credential{Username: tc.username, Password: "x"})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("PutCredential(%q) err = %v, want %v", tc.username, err, tc.wantErr)
			}
		})
	}
}

func TestImportCredentials(t *testing.T) {
	store, err := NewTestSqlConn(t)
	if err != nil {
		t.Fatalf("failed to open test connection: %v", err)
	}

	creds := []model.Credential{
		{Username: "u2", Password: "p2"},
		{Username: "bad name", Password: "p"},
		{Username: "u1", Password: "p1"},
	}
	n, err := store.ImportCredentials(context.Background(), creds)
	if err != nil {
		t.Fatalf("ImportCredentials: %v", err)
	}
	if n != 2 {
		t.Errorf("ImportCredentials wrote %d, want 2", n)
	}

	names, err := store.NonTx().ListUsernames()
	if err != nil {
		t.Fatalf("ListUsernames: %v", err)
	}
	if diff := cmp.Diff([]string{"u1", "u2"}, names); diff != "" {
		t.Errorf("ListUsernames mismatch (-want +got):\n%s", diff)
	}

	if err := store.NonTx().DeleteCredential("u1"); err != nil {
		t.Fatalf("DeleteCredential: %v", err)
	}
	if store.Authenticate("u1", "p1") {
		t.Errorf("deleted user still authenticates")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	first, err := datastore.NewProviderFactory(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.NonTx().PutCredential(model.Credential{Username: "u", Password: "p"}); err != nil {
		t.Fatalf("PutCredential: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := datastore.NewProviderFactory(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	if !second.Authenticate("u", "p") {
		t.Errorf("credential lost after reopen")
	}
}
