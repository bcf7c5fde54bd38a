// Package api implements the client for the ArticVPN management service.
// The authority is a request/response HTTP API with no push channel;
// every response decodes into exactly one explicit DTO per endpoint and a
// shape mismatch fails fast with ErrBadResponse.
package api

import (
	"context"

	"github.com/articvpn/vpnctl/internal/models"
)

// LoginResult is the payload of a successful credential submission.
type LoginResult struct {
	AccessToken string
	UserID      int64
}

// Client is the full surface of the remote authority. Components depend on
// the subset they need; HTTPClient implements all of it.
type Client interface {
	// SetToken installs the default bearer credential attached to all
	// subsequent calls. ClearToken removes it.
	SetToken(token string)
	ClearToken()

	// SetAuthExpiredHandler registers the hook invoked whenever any call
	// reports an authorization failure.
	SetAuthExpiredHandler(fn func())

	Signup(ctx context.Context, username, email, password string) error
	Login(ctx context.Context, username, password, twofaCode string) (*LoginResult, error)
	Profile(ctx context.Context) (*models.Identity, error)

	Servers(ctx context.Context) ([]models.ServerSummary, error)
	CurrentConnection(ctx context.Context) (*models.Connection, error)
	ConnectionHistory(ctx context.Context) ([]models.ConnectionRecord, error)
	Connect(ctx context.Context, userID, serverID int64) error
	Disconnect(ctx context.Context, userID int64) error
	TunnelConfig(ctx context.Context, serverID int64) (*models.TunnelConfig, error)

	TwoFAStatus(ctx context.Context) (*models.TwoFAStatus, error)
	TwoFASetup(ctx context.Context) (*models.RotationAttempt, error)
	TwoFARotate(ctx context.Context) (*models.RotationAttempt, error)
	TwoFAVerify(ctx context.Context, code string) error
	RecoveryCodes(ctx context.Context) (*models.RecoveryCodeSet, error)

	Close() error
}
