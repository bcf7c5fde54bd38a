// Package connection owns the single-active-tunnel view of the client. The
// local Connection is a cache of server truth: every mutation is a
// two-step submit-then-reconcile protocol, and only the reconciling
// refresh is ever trusted as the new state.
package connection

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/articvpn/vpnctl/internal/common"
	"github.com/articvpn/vpnctl/internal/logging"
	"github.com/articvpn/vpnctl/internal/models"
)

// API is the slice of the remote client the coordinator needs.
type API interface {
	Servers(ctx context.Context) ([]models.ServerSummary, error)
	CurrentConnection(ctx context.Context) (*models.Connection, error)
	ConnectionHistory(ctx context.Context) ([]models.ConnectionRecord, error)
	Connect(ctx context.Context, userID, serverID int64) error
	Disconnect(ctx context.Context, userID int64) error
	TunnelConfig(ctx context.Context, serverID int64) (*models.TunnelConfig, error)
}

// IdentitySource provides the caller identity attached to every mutation.
// Reads are pure lookups; the coordinator never writes session state.
type IdentitySource interface {
	Session() models.Session
}

// Coordinator serializes connection mutations: at most one of Connect,
// Disconnect, or Refresh is in flight at a time, and a second call
// attempted while busy is rejected with common.ErrBusy rather than queued.
// A generation counter makes sure a superseded fetch can never clobber
// newer state.
type Coordinator struct {
	api API
	ids IdentitySource
	log logging.Logger

	mu   sync.Mutex
	busy bool
	gen  uint64
	conn *models.Connection
}

func NewCoordinator(apiClient API, ids IdentitySource, log logging.Logger) *Coordinator {
	return &Coordinator{api: apiClient, ids: ids, log: log}
}

// Connection returns a copy of the cached tunnel record, or nil when none
// is known. The copy keeps callers from mutating coordinator state.
func (c *Coordinator) Connection() *models.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	conn := *c.conn
	if conn.Server != nil {
		srv := *conn.Server
		conn.Server = &srv
	}
	return &conn
}

// Busy reports whether a mutation is currently in flight. UI affordances
// disable themselves on it.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return common.ErrBusy
	}
	c.busy = true
	return nil
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Refresh fetches the authoritative current connection and the server
// catalog and replaces the local record wholesale. It is idempotent and
// always supersedes prior state.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.refresh(ctx)
	return nil
}

// refresh is the reconcile step shared by Refresh, Connect and Disconnect.
// The caller must hold the busy flag. Any fetch failure collapses the
// local record to "no connection": under-reporting connectivity is safer
// than over-reporting it.
func (c *Coordinator) refresh(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	var (
		conn    *models.Connection
		servers []models.ServerSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		conn, err = c.api.CurrentConnection(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		servers, err = c.api.Servers(gctx)
		return err
	})
	err := g.Wait()

	if err != nil || !conn.Active() {
		conn = nil
	}
	if conn != nil {
		for i := range servers {
			if servers[i].ID == conn.ServerID {
				srv := servers[i]
				conn.Server = &srv
				break
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// a newer refresh has already run; this result is stale
		return
	}
	c.conn = conn
	if err != nil {
		c.log.Warn(ctx, "refresh failed, assuming disconnected", "error", err)
	}
}

// Connect submits a connect intent for the given server and reconciles.
// A connect targeting the already-active server is silently absorbed, so a
// double submission cannot produce a second request. A connect while a
// tunnel to a different server is active is rejected with
// common.ErrAlreadyConnected: the caller must disconnect explicitly first.
//
// On submit failure the local record is left untouched and the server's
// reason is returned; on submit success the reconcile runs regardless of
// what the submit response claimed.
func (c *Coordinator) Connect(ctx context.Context, serverID int64) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	cur := c.conn
	c.mu.Unlock()
	if cur.Active() {
		if cur.ServerID == serverID {
			return nil
		}
		return common.ErrAlreadyConnected
	}

	sess := c.ids.Session()
	if !sess.Authenticated() {
		return common.ErrNoSession
	}

	if err := c.api.Connect(ctx, sess.Identity.UserID, serverID); err != nil {
		return err
	}

	c.log.Info(ctx, "connect submitted", "server_id", serverID)
	c.refresh(ctx)
	return nil
}

// Disconnect submits a disconnect intent for the active tunnel and
// reconciles. It is a silent no-op when there is nothing to disconnect.
func (c *Coordinator) Disconnect(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	c.mu.Lock()
	cur := c.conn
	c.mu.Unlock()
	if !cur.Active() {
		return nil
	}

	sess := c.ids.Session()
	if !sess.Authenticated() {
		return common.ErrNoSession
	}

	if err := c.api.Disconnect(ctx, sess.Identity.UserID); err != nil {
		return err
	}

	c.log.Info(ctx, "disconnect submitted")
	c.refresh(ctx)
	return nil
}

// History returns the caller's past connections, most recent first as
// reported by the authority. It is a plain read and is not gated by the
// busy flag.
func (c *Coordinator) History(ctx context.Context) ([]models.ConnectionRecord, error) {
	return c.api.ConnectionHistory(ctx)
}

// ExportTunnelConfig fetches the tunnel artifact for a server. The blob is
// handed to the user for download or import and is never parsed here.
func (c *Coordinator) ExportTunnelConfig(ctx context.Context, serverID int64) (*models.TunnelConfig, error) {
	return c.api.TunnelConfig(ctx, serverID)
}

// Servers returns the read-only server catalog.
func (c *Coordinator) Servers(ctx context.Context) ([]models.ServerSummary, error) {
	return c.api.Servers(ctx)
}
