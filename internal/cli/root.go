package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/articvpn/vpnctl/internal/api"
	"github.com/articvpn/vpnctl/internal/common"
	"github.com/articvpn/vpnctl/internal/config"
	"github.com/articvpn/vpnctl/internal/logging"
)

var (
	app     *App
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "vpnctl",
	Short: "Artic VPN command-line client",
	Long: `Artic VPN command-line client.

Manage your account, tunnels, and two-factor auth from the terminal.

Quick start:
  vpnctl signup
  vpnctl servers
  vpnctl connect 3
  vpnctl status`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if addr, _ := cmd.Flags().GetString("server"); addr != "" {
			cfg.APIBaseURL = addr
		}
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout != 0 {
			cfg.RequestTimeout = timeout
		}

		level := slog.LevelWarn
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = slog.LevelDebug
		}
		log := logging.NewSlogLogger(slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		app = NewApp(cfg, log)
		app.Session.Bootstrap(cmd.Context())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil {
			return app.Close()
		}
		return nil
	},
}

// Execute runs the command tree and renders failures for a human.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", renderError(err))
		os.Exit(1)
	}
}

// renderError turns the error taxonomy into messages a user can act on.
// Server-reported reasons pass through verbatim.
func renderError(err error) string {
	var remote *api.RemoteError
	switch {
	case errors.As(err, &remote):
		return remote.Reason
	case errors.Is(err, api.ErrUnauthorized):
		return "authentication failed, check your credentials"
	case errors.Is(err, api.ErrUnavailable):
		return "the service is unreachable, try again later"
	case errors.Is(err, common.ErrBusy):
		return "another operation is already in progress"
	case errors.Is(err, common.ErrNoSession):
		return "not logged in, run 'vpnctl login' first"
	default:
		return err.Error()
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("server", "a", "", "management service base URL")
	rootCmd.PersistentFlags().DurationP("timeout", "t", 0*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}
