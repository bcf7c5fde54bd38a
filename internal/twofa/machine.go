// Package twofa drives two-factor enrollment, secret rotation, and
// recovery-code issuance through a verify-before-commit protocol: a new
// secret takes effect only once the user has proven they can produce codes
// for it.
package twofa

import (
	"context"
	"errors"
	"sync"

	"github.com/articvpn/vpnctl/internal/common"
	"github.com/articvpn/vpnctl/internal/logging"
	"github.com/articvpn/vpnctl/internal/models"
)

// API is the slice of the remote client the machine needs.
type API interface {
	TwoFAStatus(ctx context.Context) (*models.TwoFAStatus, error)
	TwoFASetup(ctx context.Context) (*models.RotationAttempt, error)
	TwoFARotate(ctx context.Context) (*models.RotationAttempt, error)
	TwoFAVerify(ctx context.Context, code string) error
	RecoveryCodes(ctx context.Context) (*models.RecoveryCodeSet, error)
}

// State of the enrollment machine.
type State string

const (
	StateNotEnrolled State = "not_enrolled"
	StateEnrolling   State = "enrolling"
	StateEnrolled    State = "enrolled"
	StateRotating    State = "rotating"
)

var (
	// ErrAlreadyEnrolled is returned by Setup when two-factor auth is
	// already enabled; rotation is the path for an enrolled user.
	ErrAlreadyEnrolled = errors.New("two-factor auth already enabled, rotate instead")

	// ErrNotEnrolled is returned by Rotate and RecoveryCodes when
	// two-factor auth is not enabled yet.
	ErrNotEnrolled = errors.New("two-factor auth is not enabled")

	// ErrNoPendingAttempt is returned by Verify when there is no secret
	// awaiting verification.
	ErrNoPendingAttempt = errors.New("no pending secret to verify")
)

// Machine holds the authoritative TwoFAStatus and, between a setup/rotate
// request and its verification, the transient pending secret. Failures
// leave the machine in its pre-call state; there are no partial
// transitions.
type Machine struct {
	api API
	log logging.Logger

	mu      sync.Mutex
	busy    bool
	status  models.TwoFAStatus
	attempt *models.RotationAttempt
}

func NewMachine(apiClient API, log logging.Logger) *Machine {
	return &Machine{api: apiClient, log: log}
}

// State derives the current state from the authoritative status and the
// presence of a pending attempt.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	switch {
	case m.attempt != nil && m.status.Enabled:
		return StateRotating
	case m.attempt != nil:
		return StateEnrolling
	case m.status.Enabled:
		return StateEnrolled
	default:
		return StateNotEnrolled
	}
}

// Status returns a copy of the last known authoritative status.
func (m *Machine) Status() models.TwoFAStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Attempt returns a copy of the pending secret/QR pair, or nil when no
// attempt is outstanding.
func (m *Machine) Attempt() *models.RotationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempt == nil {
		return nil
	}
	a := *m.attempt
	return &a
}

func (m *Machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return common.ErrBusy
	}
	m.busy = true
	return nil
}

func (m *Machine) end() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// RefreshStatus fetches the authoritative enrollment status. On failure
// the status collapses to "not enabled", but a pending attempt is kept,
// since the server-held pending secret is unaffected by a failed read.
func (m *Machine) RefreshStatus(ctx context.Context) (models.TwoFAStatus, error) {
	st, err := m.api.TwoFAStatus(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.status = models.TwoFAStatus{}
		m.log.Warn(ctx, "2fa status unavailable, assuming not enrolled", "error", err)
		return m.status, err
	}
	m.status = *st
	return m.status, nil
}

// Setup requests a fresh secret/QR pair for first-time enrollment. The
// pair is held only in the transient attempt; enrollment state does not
// change until Verify succeeds. Calling Setup again replaces the pending
// attempt, implicitly superseding the previous secret.
func (m *Machine) Setup(ctx context.Context) (*models.RotationAttempt, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	m.mu.Lock()
	enabled := m.status.Enabled
	m.mu.Unlock()
	if enabled {
		return nil, ErrAlreadyEnrolled
	}

	return m.requestSecret(ctx, m.api.TwoFASetup)
}

// Rotate requests a replacement secret/QR pair for an enrolled user. The
// server invalidates the previous secret and any outstanding recovery
// codes; the client does not separately confirm that invalidation.
func (m *Machine) Rotate(ctx context.Context) (*models.RotationAttempt, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	m.mu.Lock()
	enabled := m.status.Enabled
	m.mu.Unlock()
	if !enabled {
		return nil, ErrNotEnrolled
	}

	return m.requestSecret(ctx, m.api.TwoFARotate)
}

func (m *Machine) requestSecret(ctx context.Context, fetch func(context.Context) (*models.RotationAttempt, error)) (*models.RotationAttempt, error) {
	attempt, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.attempt = attempt
	m.mu.Unlock()

	m.log.Info(ctx, "pending 2fa secret issued")
	a := *attempt
	return &a, nil
}

// Verify submits the user-entered code against the pending secret. On
// success the attempt is discarded and the authoritative status is
// refreshed; on failure the attempt stays intact so the user can re-enter
// the code.
func (m *Machine) Verify(ctx context.Context, code string) error {
	if code == "" {
		return common.Validationf("verification code is required")
	}

	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	pending := m.attempt != nil
	m.mu.Unlock()
	if !pending {
		return ErrNoPendingAttempt
	}

	if err := m.api.TwoFAVerify(ctx, code); err != nil {
		return err
	}

	m.mu.Lock()
	m.attempt = nil
	m.mu.Unlock()

	m.log.Info(ctx, "2fa secret verified")
	_, _ = m.RefreshStatus(ctx)
	return nil
}

// Abandon discards the pending attempt client-side. The server-held
// pending secret is not canceled; it is simply superseded by the next
// setup or rotate request.
func (m *Machine) Abandon() {
	m.mu.Lock()
	m.attempt = nil
	m.mu.Unlock()
}

// RecoveryCodes requests a fresh set of one-time codes, invalidating the
// previous set server-side. The set is returned to the caller and not
// retained: once the caller lets go of it, the codes are gone.
func (m *Machine) RecoveryCodes(ctx context.Context) (*models.RecoveryCodeSet, error) {
	m.mu.Lock()
	state := m.stateLocked()
	m.mu.Unlock()
	if state != StateEnrolled {
		return nil, ErrNotEnrolled
	}

	return m.api.RecoveryCodes(ctx)
}
