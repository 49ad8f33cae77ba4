// Package datastore provides SQLite-backed credential storage.
package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/NicolasHaas/shadowroom/pkg/crypto"
	"github.com/NicolasHaas/shadowroom/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type baseProvider struct {
	DB
}

type nonTxProvider struct {
	baseProvider
}

type txProvider struct {
	baseProvider
	tx *sql.Tx
}

func (c *txProvider) Rollback() error {
	return c.tx.Rollback()
}

func (c *txProvider) Commit() error {
	return c.tx.Commit()
}

// ProviderFactory owns the database handle and hands out providers.
type ProviderFactory struct {
	DB *sql.DB
}

func (sf *ProviderFactory) NonTx() DataStore {
	return &nonTxProvider{
		baseProvider: baseProvider{
			DB: sf.DB,
		},
	}
}

func (sf *ProviderFactory) Tx(ctx context.Context) (DataStoreTx, error) {
	tx, err := sf.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &txProvider{
		baseProvider: baseProvider{
			DB: tx,
		},
		tx: tx,
	}, nil
}

// NewProviderFactory opens (or creates) a SQLite database and runs migrations.
func NewProviderFactory(dbPath string) (*ProviderFactory, error) {
	DB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("datastore: open DB: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := DB.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := DB.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: set busy_timeout: %w", err)
	}

	s := &ProviderFactory{DB: DB}
	if err := s.migrate(); err != nil {
		_ = DB.Close()
		return nil, fmt.Errorf("datastore: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *ProviderFactory) Close() error {
	return s.DB.Close()
}

// Authenticate verifies password against the stored Argon2id hash.
// Lookup errors are logged and treated as a failed login.
func (s *ProviderFactory) Authenticate(username, password string) bool {
	salt, hash, err := s.NonTx().GetPasswordHash(username)
	if err != nil {
		slog.Error("credential lookup failed", "user", username, "err", err)
		return false
	}
	if hash == nil {
		return false
	}
	return crypto.VerifyPassword(password, salt, hash)
}

// ImportCredentials upserts every credential in one transaction and returns
// how many were written. Credentials with invalid usernames are skipped.
func (s *ProviderFactory) ImportCredentials(ctx context.Context, creds []model.Credential) (int, error) {
	tx, err := s.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("datastore: import: begin: %w", err)
	}

	n := 0
	for _, c := range creds {
		if err := tx.PutCredential(c); err != nil {
			if errors.Is(err, model.ErrUsernameEmpty) || errors.Is(err, model.ErrUsernameInvalidChars) {
				slog.Warn("skipping credential", "user", c.Username, "err", err)
				continue
			}
			_ = tx.Rollback()
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("datastore: import: commit: %w", err)
	}
	return n, nil
}

func (s *ProviderFactory) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY CHECK(length(username) > 0),
		salt          BLOB NOT NULL,
		password_hash BLOB NOT NULL,
		updated_at    TEXT NOT NULL DEFAULT (datetime('now')),
		created_at    TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version    int
		statements []string
	}{
		{
			version:    1,
			statements: []string{schema},
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("datastore: migrate v%d: %w", m.version, err)
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProviderFactory) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("datastore: create schema_migrations: %w", err)
	}
	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("datastore: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.DB.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("datastore: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *ProviderFactory) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("datastore: read schema version: %w", err)
	}
	return version, nil
}

func (s *ProviderFactory) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.DB.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("datastore: update schema version: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

// ---- Credentials ----

// PutCredential hashes the password with a fresh salt and inserts or
// replaces the user.
func (s *baseProvider) PutCredential(cred model.Credential) error {
	if err := model.ValidateUsername(cred.Username); err != nil {
		return fmt.Errorf("datastore: put credential: %w", err)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return fmt.Errorf("datastore: put credential: %w", err)
	}
	hash := crypto.HashPassword(cred.Password, salt)
	_, err = s.ExecContext(context.Background(), `
		INSERT INTO users (username, salt, password_hash, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			salt = excluded.salt,
			password_hash = excluded.password_hash,
			updated_at = excluded.updated_at`,
		cred.Username, salt, hash, formatDBTime(time.Now()))
	if err != nil {
		return fmt.Errorf("datastore: put credential: %w", err)
	}
	return nil
}

// DeleteCredential removes a user. Deleting a missing user is not an error.
func (s *baseProvider) DeleteCredential(username string) error {
	if _, err := s.ExecContext(context.Background(), "DELETE FROM users WHERE username = ?", username); err != nil {
		return fmt.Errorf("datastore: delete credential: %w", err)
	}
	return nil
}

// GetPasswordHash returns the stored salt and hash for username.
func (s *baseProvider) GetPasswordHash(username string) ([]byte, []byte, error) {
	var salt, hash []byte
	err := s.QueryRowContext(context.Background(), "SELECT salt, password_hash FROM users WHERE username = ?", username).
		Scan(&salt, &hash)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("datastore: get password hash: %w", err)
	}
	return salt, hash, nil
}

// ListUsernames returns all stored usernames in ascending order.
func (s *baseProvider) ListUsernames() ([]string, error) {
	rows, err := s.QueryContext(context.Background(), "SELECT username FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("datastore: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("datastore: scan user: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CountUsers returns the number of stored credentials.
func (s *baseProvider) CountUsers() (int, error) {
	var n int
	if err := s.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("datastore: count users: %w", err)
	}
	return n, nil
}
