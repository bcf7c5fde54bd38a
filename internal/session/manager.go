// Package session owns the authentication token and the identity derived
// from it. Nothing else in the client operates without it: the connection
// coordinator and the two-factor machine read the session through the
// manager and never mutate it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/articvpn/vpnctl/internal/api"
	"github.com/articvpn/vpnctl/internal/common"
	"github.com/articvpn/vpnctl/internal/logging"
	"github.com/articvpn/vpnctl/internal/models"
	"github.com/articvpn/vpnctl/internal/store"
)

// API is the slice of the remote client the session manager needs.
type API interface {
	SetToken(token string)
	ClearToken()
	SetAuthExpiredHandler(fn func())
	Signup(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, username, password, twofaCode string) (*api.LoginResult, error)
	Profile(ctx context.Context) (*models.Identity, error)
	TwoFAStatus(ctx context.Context) (*models.TwoFAStatus, error)
}

// Manager is the single owner of the session: the token, the identity, and
// the persisted credentials all change only through its methods.
//
// The manager never holds its lock across a network call, so the
// auth-expired hook can run from inside any in-flight request.
type Manager struct {
	api      API
	store    store.CredentialStore
	log      logging.Logger
	navigate func()

	mu           sync.Mutex
	session      models.Session
	guardArmed   bool
	bootstrapped bool
}

// NewManager wires the manager into the API client's auth-expired hook.
// navigate is invoked when the session ends: on logout and exactly once
// per detected authorization failure.
func NewManager(apiClient API, st store.CredentialStore, log logging.Logger, navigate func()) *Manager {
	m := &Manager{api: apiClient, store: st, log: log, navigate: navigate}
	apiClient.SetAuthExpiredHandler(m.handleAuthExpired)
	return m
}

// Session returns a copy of the current session state. The identity, when
// present, is a copy too; callers cannot mutate the manager's state
// through it.
func (m *Manager) Session() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session
	if s.Identity != nil {
		ident := *s.Identity
		s.Identity = &ident
	}
	return s
}

// Bootstrap hydrates the session from the credential store. It runs once
// per process lifetime; later calls are no-ops.
//
// Without a stored token it marks the session unauthenticated and makes no
// network call. With one, it attaches the token as the default credential
// and fetches the profile; a failure there means the token is stale, so
// the stored credentials are cleared and the session stays
// unauthenticated. There is no automatic retry.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.mu.Lock()
	if m.bootstrapped {
		m.mu.Unlock()
		return
	}
	m.bootstrapped = true
	m.session.Bootstrapping = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.session.Bootstrapping = false
		m.mu.Unlock()
	}()

	creds, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn(ctx, "credential store unreadable, starting unauthenticated", "error", err)
		}
		return
	}
	if creds.Token == "" {
		return
	}

	m.api.SetToken(creds.Token)
	m.mu.Lock()
	m.session.Token = creds.Token
	m.guardArmed = true
	m.mu.Unlock()

	ident, err := m.api.Profile(ctx)
	if err != nil {
		m.log.Warn(ctx, "stored token rejected, clearing session", "error", err)
		m.clearAll()
		return
	}

	// 2FA status is optional metadata; its failure never blocks
	// authentication.
	if st, err := m.api.TwoFAStatus(ctx); err == nil {
		ident.TwoFAEnabled = st.Enabled
	}

	m.mu.Lock()
	m.session.Identity = ident
	m.mu.Unlock()

	m.log.Info(ctx, "session restored", "user_id", ident.UserID, "username", ident.Username)
}

// Login submits credentials plus an optional second-factor code. On
// success the token, the persisted credentials, and the identity are set
// together; on failure the session is left untouched and the server's
// reason is returned verbatim.
func (m *Manager) Login(ctx context.Context, username, password, twofaCode string) error {
	if username == "" {
		return common.Validationf("username is required")
	}
	if password == "" {
		return common.Validationf("password is required")
	}

	res, err := m.api.Login(ctx, username, password, twofaCode)
	if err != nil {
		return err
	}

	if err := m.store.Save(store.Credentials{Token: res.AccessToken, UserID: res.UserID}); err != nil {
		// Persisting is best-effort: the session still works for this
		// process; only the next one will have to log in again.
		m.log.Warn(ctx, "could not persist credentials", "error", err)
	}
	m.api.SetToken(res.AccessToken)

	m.mu.Lock()
	m.session.Token = res.AccessToken
	m.session.Identity = &models.Identity{UserID: res.UserID, Username: username}
	m.guardArmed = true
	m.mu.Unlock()

	m.log.Info(ctx, "logged in", "user_id", res.UserID, "username", username)
	return nil
}

// Signup creates the account and immediately logs in with the new
// credentials, leaving the caller authenticated so two-factor enrollment
// can follow.
func (m *Manager) Signup(ctx context.Context, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return common.Validationf("username, email and password are all required")
	}

	if err := m.api.Signup(ctx, username, email, password); err != nil {
		return err
	}

	if err := m.Login(ctx, username, password, ""); err != nil {
		return fmt.Errorf("account created but login failed: %w", err)
	}
	return nil
}

// Logout clears the token, the persisted credentials, and the identity,
// then forces navigation to the unauthenticated entry point so no stale
// state survives into the next session.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Clear(); err != nil {
		m.log.Warn(ctx, "could not clear stored credentials", "error", err)
	}
	m.api.ClearToken()

	m.mu.Lock()
	m.session = models.Session{}
	m.guardArmed = false
	nav := m.navigate
	m.mu.Unlock()

	m.log.Info(ctx, "logged out")
	if nav != nil {
		nav()
	}
	return nil
}

// clearAll wipes persisted and in-memory session state without navigating.
func (m *Manager) clearAll() {
	_ = m.store.Clear()
	m.api.ClearToken()

	m.mu.Lock()
	m.session = models.Session{}
	m.guardArmed = false
	m.mu.Unlock()
}

// handleAuthExpired is the single point of truth for "the session has
// ended". It runs from inside the API transport whenever any call, from
// any component, reports an authorization failure, and it must win over
// whatever that call's own error handling does next.
//
// The armed flag makes the clear-and-navigate fire exactly once per
// session even when several in-flight calls report the failure together.
func (m *Manager) handleAuthExpired() {
	m.mu.Lock()
	if !m.guardArmed {
		m.mu.Unlock()
		return
	}
	m.guardArmed = false
	m.session = models.Session{}
	nav := m.navigate
	m.mu.Unlock()

	_ = m.store.Clear()
	m.api.ClearToken()

	m.log.Warn(context.Background(), "authorization rejected, session cleared")
	if nav != nil {
		nav()
	}
}
