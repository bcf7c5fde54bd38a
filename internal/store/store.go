// Package store persists the bearer token and user identifier across
// process restarts. It is the only durable client-side state; everything
// else is rebuilt from authoritative refreshes.
package store

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when no credentials are stored.
var ErrNotFound = errors.New("credentials not found")

// Credentials is the persisted pair: the opaque bearer token and the user
// identifier attached to connection mutations.
type Credentials struct {
	Token  string
	UserID int64
}

// CredentialStore is the persistence contract. Write access is restricted
// to the session manager's login/logout/guard paths; other components only
// read through the session manager.
type CredentialStore interface {
	// Load returns the stored credentials, or ErrNotFound when absent.
	Load() (Credentials, error)

	// Save replaces the stored credentials.
	Save(creds Credentials) error

	// Clear removes any stored credentials. Clearing an empty store is
	// not an error.
	Clear() error
}

// Memory is an in-process CredentialStore used in tests and as a fallback
// when no system keyring is reachable.
type Memory struct {
	mu    sync.Mutex
	creds *Credentials
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() (Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return Credentials{}, ErrNotFound
	}
	return *m.creds, nil
}

func (m *Memory) Save(creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := creds
	m.creds = &c
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}
