package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List available VPN servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		servers, err := app.Conn.Servers(cmd.Context())
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			fmt.Println("No servers available.")
			return nil
		}

		fmt.Printf("%-5s %-20s %-10s %-16s %s\n", "ID", "NAME", "COUNTRY", "ADDRESS", "STATE")
		for _, s := range servers {
			state := "online"
			if !s.IsActive {
				state = "offline"
			}
			fmt.Printf("%-5d %-20s %-10s %-16s %s\n", s.ID, s.Name, s.Country, s.IPAddress, state)
		}
		return nil
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect <server-id>",
	Short: "Connect to a VPN server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireLogin(); err != nil {
			return err
		}
		serverID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid server id %q", args[0])
		}

		if err := app.Conn.Refresh(cmd.Context()); err != nil {
			return err
		}
		if err := app.Conn.Connect(cmd.Context(), serverID); err != nil {
			return err
		}

		conn := app.Conn.Connection()
		if conn == nil || !conn.Active() {
			fmt.Println("Connect accepted but no active tunnel is reported yet.")
			return nil
		}
		fmt.Printf("Connected to %s.\n", describeServer(conn.ServerID))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect the active tunnel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireLogin(); err != nil {
			return err
		}
		if err := app.Conn.Refresh(cmd.Context()); err != nil {
			return err
		}
		if app.Conn.Connection() == nil {
			fmt.Println("No active tunnel.")
			return nil
		}
		if err := app.Conn.Disconnect(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Disconnected.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and tunnel status",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess := app.Session.Session()
		if !sess.Authenticated() {
			fmt.Println("Not logged in.")
			return nil
		}

		fmt.Printf("Account:    %s (id %d)\n", sess.Identity.Username, sess.Identity.UserID)
		if status, err := app.TwoFA.RefreshStatus(cmd.Context()); err != nil {
			fmt.Println("2FA:        unknown (status unavailable)")
		} else if status.Enabled {
			fmt.Println("2FA:        enabled")
		} else {
			fmt.Println("2FA:        not enabled")
		}

		if err := app.Conn.Refresh(cmd.Context()); err != nil {
			return err
		}
		conn := app.Conn.Connection()
		if conn == nil {
			fmt.Println("Tunnel:     not connected")
			return nil
		}

		fmt.Printf("Tunnel:     connected to %s\n", describeServer(conn.ServerID))
		fmt.Printf("Since:      %s\n", conn.ConnectedAt.Local().Format(time.RFC1123))
		fmt.Printf("Uptime:     %s\n", time.Since(conn.ConnectedAt).Round(time.Second))
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past tunnel sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireLogin(); err != nil {
			return err
		}
		records, err := app.Conn.History(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No connections yet.")
			return nil
		}

		fmt.Printf("%-20s %-10s %-22s %s\n", "SERVER", "COUNTRY", "CONNECTED", "DURATION")
		for _, r := range records {
			duration := "active"
			if r.DisconnectedAt != nil {
				duration = r.DisconnectedAt.Sub(r.ConnectedAt).Round(time.Second).String()
			}
			fmt.Printf("%-20s %-10s %-22s %s\n",
				r.ServerName, r.Country,
				r.ConnectedAt.Local().Format("2006-01-02 15:04:05"), duration)
		}
		return nil
	},
}

var exportConfigCmd = &cobra.Command{
	Use:   "export-config <server-id>",
	Short: "Export a WireGuard config for a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.requireLogin(); err != nil {
			return err
		}
		serverID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid server id %q", args[0])
		}

		cfg, err := app.Conn.ExportTunnelConfig(cmd.Context(), serverID)
		if err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := os.WriteFile(out, []byte(cfg.ConfigText), 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("Config written to %s (allocated IP %s).\n", out, cfg.AllocatedIP)
		} else {
			fmt.Print(cfg.ConfigText)
		}

		if qr, _ := cmd.Flags().GetString("qr"); qr != "" {
			if err := writeDataURL(qr, cfg.QRDataURL); err != nil {
				return err
			}
			fmt.Printf("QR code written to %s.\n", qr)
		}
		return nil
	},
}

// describeServer resolves a server id to "name (country)" via the cached
// connection summary, falling back to the bare id.
func describeServer(serverID int64) string {
	if conn := app.Conn.Connection(); conn != nil && conn.Server != nil && conn.Server.ID == serverID {
		return fmt.Sprintf("%s (%s)", conn.Server.Name, conn.Server.Country)
	}
	return fmt.Sprintf("server %d", serverID)
}

func init() {
	exportConfigCmd.Flags().StringP("output", "o", "", "write the config to a file instead of stdout")
	exportConfigCmd.Flags().String("qr", "", "write the QR code PNG to a file")

	rootCmd.AddCommand(serversCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportConfigCmd)
}
