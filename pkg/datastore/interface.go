package datastore

import (
	"context"

	"github.com/NicolasHaas/shadowroom/pkg/auth"
	"github.com/NicolasHaas/shadowroom/pkg/model"
)

type DataProviderFactory interface {
	NonTx() DataStore
	Tx(context.Context) (DataStoreTx, error)
}

type DataStoreTx interface {
	DataStore
	Rollback() error
	Commit() error
}

// DataStore defines the persistence interface for stored credentials.
type DataStore interface {
	CredentialReadProvider
	CredentialWriteProvider
}

type CredentialReadProvider interface {
	// GetPasswordHash returns the salt and hash for username. Returns
	// (nil, nil, nil) if the user does not exist.
	GetPasswordHash(username string) (salt, hash []byte, err error)
	ListUsernames() ([]string, error)
	CountUsers() (int, error)
}

type CredentialWriteProvider interface {
	PutCredential(cred model.Credential) error
	DeleteCredential(username string) error
}

var (
	_ DataProviderFactory = (*ProviderFactory)(nil)
	_ auth.Authenticator  = (*ProviderFactory)(nil)
)
