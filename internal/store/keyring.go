package store

import (
	"errors"
	"strconv"

	"github.com/zalando/go-keyring"
)

const (
	tokenKey  = "access_token"
	userIDKey = "user_id"
)

// Keyring stores credentials in the operating system keyring, so the token
// survives restarts without ever touching a plaintext file.
type Keyring struct {
	service string
}

// NewKeyring builds a store scoped to the given keyring service name.
func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

var _ CredentialStore = (*Keyring)(nil)

func (k *Keyring) Load() (Credentials, error) {
	token, err := keyring.Get(k.service, tokenKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credentials{}, ErrNotFound
		}
		return Credentials{}, err
	}

	creds := Credentials{Token: token}
	if raw, err := keyring.Get(k.service, userIDKey); err == nil {
		creds.UserID, _ = strconv.ParseInt(raw, 10, 64)
	}
	return creds, nil
}

func (k *Keyring) Save(creds Credentials) error {
	if err := keyring.Set(k.service, tokenKey, creds.Token); err != nil {
		return err
	}
	return keyring.Set(k.service, userIDKey, strconv.FormatInt(creds.UserID, 10))
}

func (k *Keyring) Clear() error {
	if err := keyring.Delete(k.service, tokenKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	if err := keyring.Delete(k.service, userIDKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
