// Package cli implements the vpnctl command tree.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/articvpn/vpnctl/internal/api"
	"github.com/articvpn/vpnctl/internal/config"
	"github.com/articvpn/vpnctl/internal/connection"
	"github.com/articvpn/vpnctl/internal/logging"
	"github.com/articvpn/vpnctl/internal/session"
	"github.com/articvpn/vpnctl/internal/store"
	"github.com/articvpn/vpnctl/internal/twofa"
)

// keyringService names the OS keyring entry vpnctl stores credentials under.
const keyringService = "articvpn-vpnctl"

// App wires the API client, the credential store, and the three state
// holders together. One App lives for the duration of a single command
// invocation.
type App struct {
	Config  *config.Config
	Log     logging.Logger
	Client  *api.HTTPClient
	Session *session.Manager
	Conn    *connection.Coordinator
	TwoFA   *twofa.Machine

	reader *bufio.Reader

	// quietNav suppresses the session-ended notice during a deliberate
	// logout, where the user does not need to be told to sign in again.
	quietNav atomic.Bool
}

func NewApp(cfg *config.Config, log logging.Logger) *App {
	a := &App{
		Config: cfg,
		Log:    log,
		reader: bufio.NewReader(os.Stdin),
	}

	a.Client = api.NewHTTPClient(cfg.APIBaseURL, cfg.RequestTimeout)
	creds := store.NewKeyring(keyringService)

	a.Session = session.NewManager(a.Client, creds, log, a.notifySessionEnded)
	a.Conn = connection.NewCoordinator(a.Client, a.Session, log)
	a.TwoFA = twofa.NewMachine(a.Client, log)
	return a
}

func (a *App) notifySessionEnded() {
	if a.quietNav.Load() {
		return
	}
	fmt.Fprintln(os.Stderr, "Session expired. Run 'vpnctl login' to sign in again.")
}

func (a *App) Close() error {
	return a.Client.Close()
}

// requireLogin fails fast for commands that cannot work anonymously.
func (a *App) requireLogin() error {
	if !a.Session.Session().Authenticated() {
		return fmt.Errorf("not logged in, run 'vpnctl login' first")
	}
	return nil
}
