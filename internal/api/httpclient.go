package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/articvpn/vpnctl/internal/models"
)

// HTTPClient talks JSON over HTTP to the management service. A single
// instance is shared by all components; the bearer credential it holds is
// written only by the session manager.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	token   string
	expired func()
}

// NewHTTPClient builds a client for the given base URL. The timeout bounds
// every request end to end.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	c := &HTTPClient{baseURL: strings.TrimRight(baseURL, "/")}
	c.http = &http.Client{
		Timeout: timeout,
		Transport: &authTransport{
			base:    http.DefaultTransport,
			token:   c.currentToken,
			expired: c.fireAuthExpired,
		},
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) ClearToken() {
	c.SetToken("")
}

func (c *HTTPClient) SetAuthExpiredHandler(fn func()) {
	c.mu.Lock()
	c.expired = fn
	c.mu.Unlock()
}

func (c *HTTPClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) fireAuthExpired() {
	c.mu.RLock()
	fn := c.expired
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// errorBody is the failure shape of the authority: {"detail": "reason"}.
type errorBody struct {
	Detail string `json:"detail"`
}

// do performs one round trip and decodes the response into out (when out
// is non-nil). Failures map onto the package sentinels: transport errors
// to ErrUnavailable, 401 to ErrUnauthorized, other non-2xx statuses to a
// RemoteError carrying the server's verbatim reason, and undecodable
// success bodies to ErrBadResponse.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		if eb.Detail == "" {
			eb.Detail = http.StatusText(resp.StatusCode)
		}
		return &RemoteError{Status: resp.StatusCode, Reason: eb.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func (c *HTTPClient) Signup(ctx context.Context, username, email, password string) error {
	body := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{username, email, password}

	return c.do(ctx, http.MethodPost, "/users/signup", body, nil)
}

func (c *HTTPClient) Login(ctx context.Context, username, password, twofaCode string) (*LoginResult, error) {
	body := struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		TwoFACode string `json:"twofa_code,omitempty"`
	}{username, password, twofaCode}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		UserID      int64  `json:"user_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/login", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.UserID == 0 {
		return nil, fmt.Errorf("%w: login response missing token or user id", ErrBadResponse)
	}

	return &LoginResult{AccessToken: resp.AccessToken, UserID: resp.UserID}, nil
}

func (c *HTTPClient) Profile(ctx context.Context) (*models.Identity, error) {
	var resp struct {
		Message string `json:"message"`
		User    struct {
			UserID int64  `json:"user_id"`
			Sub    string `json:"sub"`
			Role   string `json:"role"`
		} `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/profile", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User.UserID == 0 {
		return nil, fmt.Errorf("%w: profile response missing user id", ErrBadResponse)
	}

	return &models.Identity{
		UserID:   resp.User.UserID,
		Username: resp.User.Sub,
		Role:     resp.User.Role,
	}, nil
}

type serverDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Country   string `json:"country"`
	IPAddress string `json:"ip_address"`
	IsActive  bool   `json:"is_active"`
}

func (c *HTTPClient) Servers(ctx context.Context) ([]models.ServerSummary, error) {
	var resp []serverDTO
	if err := c.do(ctx, http.MethodGet, "/servers", nil, &resp); err != nil {
		return nil, err
	}

	servers := make([]models.ServerSummary, 0, len(resp))
	for _, s := range resp {
		servers = append(servers, models.ServerSummary{
			ID:        s.ID,
			Name:      s.Name,
			Country:   s.Country,
			IPAddress: s.IPAddress,
			IsActive:  s.IsActive,
		})
	}
	return servers, nil
}

type connectionDTO struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	ServerID       int64      `json:"server_id"`
	ConnectedAt    *time.Time `json:"connected_at"`
	DisconnectedAt *time.Time `json:"disconnected_at"`
}

func (d *connectionDTO) toModel() *models.Connection {
	conn := &models.Connection{
		ID:             d.ID,
		UserID:         d.UserID,
		ServerID:       d.ServerID,
		DisconnectedAt: d.DisconnectedAt,
	}
	if d.ConnectedAt != nil {
		conn.ConnectedAt = *d.ConnectedAt
	}
	return conn
}

// CurrentConnection returns the most recent tunnel record for the caller,
// or nil when the authority reports none.
func (c *HTTPClient) CurrentConnection(ctx context.Context) (*models.Connection, error) {
	var resp *connectionDTO
	if err := c.do(ctx, http.MethodGet, "/users/me/connection", nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil || resp.ID == 0 {
		return nil, nil
	}
	return resp.toModel(), nil
}

func (c *HTTPClient) ConnectionHistory(ctx context.Context) ([]models.ConnectionRecord, error) {
	var resp struct {
		Connections []struct {
			ID             int64      `json:"id"`
			UserID         int64      `json:"user_id"`
			ServerID       int64      `json:"server_id"`
			ServerName     string     `json:"server_name"`
			Country        string     `json:"country"`
			ConnectedAt    *time.Time `json:"connected_at"`
			DisconnectedAt *time.Time `json:"disconnected_at"`
		} `json:"connections"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/my-connections", nil, &resp); err != nil {
		return nil, err
	}

	records := make([]models.ConnectionRecord, 0, len(resp.Connections))
	for _, r := range resp.Connections {
		rec := models.ConnectionRecord{
			ID:             r.ID,
			UserID:         r.UserID,
			ServerID:       r.ServerID,
			ServerName:     r.ServerName,
			Country:        r.Country,
			DisconnectedAt: r.DisconnectedAt,
		}
		if r.ConnectedAt != nil {
			rec.ConnectedAt = *r.ConnectedAt
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *HTTPClient) Connect(ctx context.Context, userID, serverID int64) error {
	body := struct {
		UserID   int64 `json:"user_id"`
		ServerID int64 `json:"server_id"`
	}{userID, serverID}

	return c.do(ctx, http.MethodPost, "/users/connect", body, nil)
}

func (c *HTTPClient) Disconnect(ctx context.Context, userID int64) error {
	body := struct {
		UserID int64 `json:"user_id"`
	}{userID}

	return c.do(ctx, http.MethodPost, "/users/disconnect", body, nil)
}

func (c *HTTPClient) TunnelConfig(ctx context.Context, serverID int64) (*models.TunnelConfig, error) {
	body := struct {
		ServerID int64 `json:"server_id"`
	}{serverID}

	var resp struct {
		ConfigText  string `json:"config_text"`
		QRDataURL   string `json:"qr_code_data_url"`
		AllocatedIP string `json:"allocated_ip"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/wg-config", body, &resp); err != nil {
		return nil, err
	}
	if resp.ConfigText == "" {
		return nil, fmt.Errorf("%w: tunnel config response missing config text", ErrBadResponse)
	}

	return &models.TunnelConfig{
		ConfigText:  resp.ConfigText,
		QRDataURL:   resp.QRDataURL,
		AllocatedIP: resp.AllocatedIP,
	}, nil
}

func (c *HTTPClient) TwoFAStatus(ctx context.Context) (*models.TwoFAStatus, error) {
	var resp struct {
		Enabled   bool       `json:"enabled"`
		RotatedAt *time.Time `json:"rotated_at"`
	}
	if err := c.do(ctx, http.MethodGet, "/security/2fa/status", nil, &resp); err != nil {
		return nil, err
	}
	return &models.TwoFAStatus{Enabled: resp.Enabled, RotatedAt: resp.RotatedAt}, nil
}

// secretResponse is the shared shape of the setup and rotate endpoints.
type secretResponse struct {
	Message   string `json:"message"`
	QRDataURL string `json:"qr_data_url"`
	Secret    string `json:"secret"`
}

func (c *HTTPClient) newSecret(ctx context.Context, path string) (*models.RotationAttempt, error) {
	var resp secretResponse
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Secret == "" || resp.QRDataURL == "" {
		return nil, fmt.Errorf("%w: setup response missing secret or QR", ErrBadResponse)
	}
	return &models.RotationAttempt{
		Secret:    resp.Secret,
		QRDataURL: resp.QRDataURL,
		Pending:   true,
	}, nil
}

func (c *HTTPClient) TwoFASetup(ctx context.Context) (*models.RotationAttempt, error) {
	return c.newSecret(ctx, "/security/2fa/setup")
}

func (c *HTTPClient) TwoFARotate(ctx context.Context) (*models.RotationAttempt, error) {
	return c.newSecret(ctx, "/security/2fa/rotate")
}

func (c *HTTPClient) TwoFAVerify(ctx context.Context, code string) error {
	body := struct {
		Code string `json:"code"`
	}{code}

	return c.do(ctx, http.MethodPost, "/security/2fa/verify", body, nil)
}

func (c *HTTPClient) RecoveryCodes(ctx context.Context) (*models.RecoveryCodeSet, error) {
	var resp struct {
		RecoveryCodes []string `json:"recovery_codes"`
	}
	if err := c.do(ctx, http.MethodPost, "/security/2fa/recovery-codes", nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.RecoveryCodes) == 0 {
		return nil, fmt.Errorf("%w: issuance returned no recovery codes", ErrBadResponse)
	}
	return &models.RecoveryCodeSet{Codes: resp.RecoveryCodes}, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
