package connection

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/articvpn/vpnctl/internal/api"
	"github.com/articvpn/vpnctl/internal/common"
	"github.com/articvpn/vpnctl/internal/logging"
	"github.com/articvpn/vpnctl/internal/models"
)

// ---- fakes ----

type fakeAPI struct {
	mu sync.Mutex

	ServersRet []models.ServerSummary
	ServersErr error

	CurrentRet *models.Connection
	CurrentErr error

	HistoryRet []models.ConnectionRecord
	HistoryErr error

	ConnectErr    error
	DisconnectErr error

	TunnelRet *models.TunnelConfig
	TunnelErr error

	// ConnectBlock, when set, is closed by the test to release an
	// in-flight Connect submit.
	ConnectBlock chan struct{}

	ConnectCalls    int
	DisconnectCalls int
	CurrentCalls    int
	ServersCalls    int

	LastConnectUserID   int64
	LastConnectServerID int64
	LastDisconnectUser  int64
}

func (f *fakeAPI) Servers(ctx context.Context) ([]models.ServerSummary, error) {
	f.mu.Lock()
	f.ServersCalls++
	ret, err := f.ServersRet, f.ServersErr
	f.mu.Unlock()
	return ret, err
}

func (f *fakeAPI) CurrentConnection(ctx context.Context) (*models.Connection, error) {
	f.mu.Lock()
	f.CurrentCalls++
	ret, err := f.CurrentRet, f.CurrentErr
	f.mu.Unlock()
	if ret == nil {
		return nil, err
	}
	conn := *ret
	return &conn, err
}

func (f *fakeAPI) ConnectionHistory(ctx context.Context) ([]models.ConnectionRecord, error) {
	return f.HistoryRet, f.HistoryErr
}

func (f *fakeAPI) Connect(ctx context.Context, userID, serverID int64) error {
	f.mu.Lock()
	f.ConnectCalls++
	f.LastConnectUserID = userID
	f.LastConnectServerID = serverID
	block := f.ConnectBlock
	err := f.ConnectErr
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeAPI) Disconnect(ctx context.Context, userID int64) error {
	f.mu.Lock()
	f.DisconnectCalls++
	f.LastDisconnectUser = userID
	f.mu.Unlock()
	return f.DisconnectErr
}

func (f *fakeAPI) TunnelConfig(ctx context.Context, serverID int64) (*models.TunnelConfig, error) {
	return f.TunnelRet, f.TunnelErr
}

type fakeIdentity struct {
	sess models.Session
}

func (f *fakeIdentity) Session() models.Session { return f.sess }

func loggedIn(userID int64) *fakeIdentity {
	return &fakeIdentity{sess: models.Session{
		Token:    "t1",
		Identity: &models.Identity{UserID: userID, Username: "alice"},
	}}
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func activeConn(serverID int64) *models.Connection {
	return &models.Connection{ID: 1, UserID: 7, ServerID: serverID, ConnectedAt: time.Now()}
}

func endedConn(serverID int64) *models.Connection {
	now := time.Now()
	c := activeConn(serverID)
	c.DisconnectedAt = &now
	return c
}

// ---- tests ----

func TestRefresh_DenormalizesServer(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: activeConn(5),
		ServersRet: []models.ServerSummary{
			{ID: 4, Name: "Oslo"},
			{ID: 5, Name: "Reykjavik", Country: "IS"},
		},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	require.NoError(t, c.Refresh(context.Background()))

	conn := c.Connection()
	require.NotNil(t, conn)
	require.True(t, conn.Active())
	require.NotNil(t, conn.Server)
	require.Equal(t, "Reykjavik", conn.Server.Name)
}

func TestRefresh_NoActiveConnection(t *testing.T) {
	f := &fakeAPI{CurrentRet: endedConn(5)}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	require.NoError(t, c.Refresh(context.Background()))
	require.Nil(t, c.Connection())
}

func TestRefresh_UnknownServerKeptWithoutSummary(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: activeConn(99),
		ServersRet: []models.ServerSummary{{ID: 5, Name: "Reykjavik"}},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	require.NoError(t, c.Refresh(context.Background()))

	conn := c.Connection()
	require.NotNil(t, conn)
	require.Nil(t, conn.Server)
}

func TestRefresh_FetchFailureCollapsesToDisconnected(t *testing.T) {
	f := &fakeAPI{CurrentRet: activeConn(5)}
	c := NewCoordinator(f, loggedIn(7), testLogger())
	require.NoError(t, c.Refresh(context.Background()))
	require.NotNil(t, c.Connection())

	// catalog fetch now fails; a stale value must not survive
	f.mu.Lock()
	f.ServersErr = api.ErrUnavailable
	f.mu.Unlock()

	require.NoError(t, c.Refresh(context.Background()))
	require.Nil(t, c.Connection())
}

func TestConnect_SubmitThenReconcile(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: activeConn(5),
		ServersRet: []models.ServerSummary{{ID: 5, Name: "Reykjavik"}},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	require.NoError(t, c.Connect(context.Background(), 5))

	require.Equal(t, 1, f.ConnectCalls)
	require.Equal(t, int64(7), f.LastConnectUserID)
	require.Equal(t, int64(5), f.LastConnectServerID)
	require.NotNil(t, c.Connection())
}

func TestConnect_RefreshSupersedesSubmitResponse(t *testing.T) {
	// the submit succeeds, but the authoritative refresh reports no
	// connection; the final state must be "no connection"
	f := &fakeAPI{CurrentRet: nil}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	require.NoError(t, c.Connect(context.Background(), 5))

	require.Equal(t, 1, f.ConnectCalls)
	require.Nil(t, c.Connection())
}

func TestConnect_SameActiveServerIsNoop(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: activeConn(5),
		ServersRet: []models.ServerSummary{{ID: 5}},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())
	require.NoError(t, c.Refresh(context.Background()))

	calls := f.ConnectCalls
	require.NoError(t, c.Connect(context.Background(), 5))
	require.Equal(t, calls, f.ConnectCalls)
}

func TestConnect_DifferentActiveServerRejected(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: activeConn(5),
		ServersRet: []models.ServerSummary{{ID: 5}},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())
	require.NoError(t, c.Refresh(context.Background()))

	err := c.Connect(context.Background(), 6)
	require.ErrorIs(t, err, common.ErrAlreadyConnected)
	require.Zero(t, f.ConnectCalls)
}

func TestConnect_WhileInFlight_RejectedNotQueued(t *testing.T) {
	f := &fakeAPI{ConnectBlock: make(chan struct{})}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), 5) }()

	// wait for the first submit to be in flight
	require.Eventually(t, func() bool {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.ConnectCalls == 1
	}, time.Second, time.Millisecond)

	err := c.Connect(context.Background(), 5)
	require.ErrorIs(t, err, common.ErrBusy)

	close(f.ConnectBlock)
	require.NoError(t, <-done)

	// exactly one submit went out
	require.Equal(t, 1, f.ConnectCalls)
}

func TestConnect_SubmitFailure_LeavesStateUntouched(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: nil,
		ConnectErr: &api.RemoteError{Status: 400, Reason: "Server is not active"},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	err := c.Connect(context.Background(), 5)
	require.EqualError(t, err, "Server is not active")
	require.Nil(t, c.Connection())
	// the reconcile must not have run: the submit never took effect
	require.Zero(t, f.CurrentCalls)
}

func TestConnect_WithoutSession(t *testing.T) {
	f := &fakeAPI{}
	c := NewCoordinator(f, &fakeIdentity{}, testLogger())

	err := c.Connect(context.Background(), 5)
	require.ErrorIs(t, err, common.ErrNoSession)
	require.Zero(t, f.ConnectCalls)
}

func TestDisconnect_GuardedWhenNothingActive(t *testing.T) {
	f := &fakeAPI{}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	// no connection known at all
	require.NoError(t, c.Disconnect(context.Background()))
	require.Zero(t, f.DisconnectCalls)
	require.Zero(t, f.CurrentCalls)

	// a connection that already ended
	f.mu.Lock()
	f.CurrentRet = endedConn(5)
	f.mu.Unlock()
	require.NoError(t, c.Refresh(context.Background()))
	before := f.DisconnectCalls

	require.NoError(t, c.Disconnect(context.Background()))
	require.Equal(t, before, f.DisconnectCalls)
}

func TestDisconnect_ActiveTunnel(t *testing.T) {
	f := &fakeAPI{CurrentRet: activeConn(5), ServersRet: []models.ServerSummary{{ID: 5}}}
	c := NewCoordinator(f, loggedIn(7), testLogger())
	require.NoError(t, c.Refresh(context.Background()))

	// the authority now reports the tunnel gone
	f.mu.Lock()
	f.CurrentRet = nil
	f.mu.Unlock()

	require.NoError(t, c.Disconnect(context.Background()))
	require.Equal(t, 1, f.DisconnectCalls)
	require.Equal(t, int64(7), f.LastDisconnectUser)
	require.Nil(t, c.Connection())
}

func TestConnection_ReturnsCopy(t *testing.T) {
	f := &fakeAPI{
		CurrentRet: activeConn(5),
		ServersRet: []models.ServerSummary{{ID: 5, Name: "Reykjavik"}},
	}
	c := NewCoordinator(f, loggedIn(7), testLogger())
	require.NoError(t, c.Refresh(context.Background()))

	conn := c.Connection()
	conn.ServerID = 999
	conn.Server.Name = "mutated"

	again := c.Connection()
	require.Equal(t, int64(5), again.ServerID)
	require.Equal(t, "Reykjavik", again.Server.Name)
}

func TestExportTunnelConfig_Passthrough(t *testing.T) {
	f := &fakeAPI{TunnelRet: &models.TunnelConfig{ConfigText: "[Interface]", AllocatedIP: "10.0.0.2/32"}}
	c := NewCoordinator(f, loggedIn(7), testLogger())

	cfg, err := c.ExportTunnelConfig(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "[Interface]", cfg.ConfigText)
}
