package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/articvpn/vpnctl/internal/models"
)

var twofaCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage two-factor authentication",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Run the root hook first so the app is wired.
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return app.requireLogin()
	},
}

var twofaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enrollment status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := app.TwoFA.RefreshStatus(cmd.Context())
		if err != nil {
			return err
		}
		if !status.Enabled {
			fmt.Println("Two-factor auth is not enabled.")
			return nil
		}
		fmt.Println("Two-factor auth is enabled.")
		if status.RotatedAt != nil {
			fmt.Printf("Secret last rotated %s.\n", status.RotatedAt.Local().Format(time.RFC1123))
		}
		return nil
	},
}

var twofaSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Enable two-factor auth",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := app.TwoFA.RefreshStatus(cmd.Context()); err != nil {
			app.Log.Debug(cmd.Context(), "status refresh failed before setup", "error", err)
		}
		qrPath, _ := cmd.Flags().GetString("qr")
		return runTwoFAEnrollment(cmd, qrPath)
	},
}

var twofaRotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Replace the two-factor secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := app.TwoFA.RefreshStatus(cmd.Context()); err != nil {
			return err
		}

		attempt, err := app.TwoFA.Rotate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println("Your current secret and recovery codes stay valid until the new one is verified.")

		qrPath, _ := cmd.Flags().GetString("qr")
		if err := presentAttempt(attempt, qrPath); err != nil {
			return err
		}
		if err := verifyPendingSecret(cmd); err != nil {
			return err
		}
		fmt.Println("Secret rotated. Previously issued recovery codes are no longer valid.")
		return nil
	},
}

var twofaVerifyCmd = &cobra.Command{
	Use:   "verify <code>",
	Short: "Confirm a pending secret from an earlier setup or rotate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// The pending secret lives on the server, so a code can be
		// submitted from a fresh invocation.
		if err := app.Client.TwoFAVerify(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Code accepted. Two-factor auth is active.")
		return nil
	},
}

var twofaRecoveryCmd = &cobra.Command{
	Use:   "recovery-codes",
	Short: "Generate a fresh set of recovery codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := app.TwoFA.RefreshStatus(cmd.Context()); err != nil {
			return err
		}

		ok, err := Confirm(app.reader, "This invalidates any previously issued recovery codes. Continue?", os.Stdout)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		set, err := app.TwoFA.RecoveryCodes(cmd.Context())
		if err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			data := strings.Join(set.Codes, "\n") + "\n"
			if err := os.WriteFile(out, []byte(data), 0o600); err != nil {
				return fmt.Errorf("write recovery codes: %w", err)
			}
			fmt.Printf("Recovery codes written to %s. Store the file somewhere safe.\n", out)
			return nil
		}
		printRecoveryCodes(set)
		return nil
	},
}

// runTwoFAEnrollment drives first-time enrollment end to end: request a
// secret, show it, and loop on code entry until the server accepts one.
func runTwoFAEnrollment(cmd *cobra.Command, qrPath string) error {
	attempt, err := app.TwoFA.Setup(cmd.Context())
	if err != nil {
		return err
	}
	if err := presentAttempt(attempt, qrPath); err != nil {
		return err
	}
	if err := verifyPendingSecret(cmd); err != nil {
		return err
	}
	fmt.Println("Two-factor auth enabled.")
	fmt.Println("Run 'vpnctl 2fa recovery-codes' to generate backup codes.")
	return nil
}

func presentAttempt(attempt *models.RotationAttempt, qrPath string) error {
	fmt.Println("Scan the QR code with your authenticator app, or enter the secret manually:")
	fmt.Printf("  Secret: %s\n", attempt.Secret)
	if qrPath != "" {
		if err := writeDataURL(qrPath, attempt.QRDataURL); err != nil {
			return err
		}
		fmt.Printf("  QR code written to %s\n", qrPath)
	}
	return nil
}

const maxVerifyAttempts = 3

func verifyPendingSecret(cmd *cobra.Command) error {
	var lastErr error
	for i := 0; i < maxVerifyAttempts; i++ {
		code, err := GetSimpleText(app.reader, "Enter the 6-digit code", os.Stdout)
		if err != nil {
			return err
		}
		lastErr = app.TwoFA.Verify(cmd.Context(), code)
		if lastErr == nil {
			return nil
		}
		fmt.Println("Code rejected:", renderError(lastErr))
	}
	app.TwoFA.Abandon()
	return fmt.Errorf("too many failed attempts; run the command again to start over (%w)", lastErr)
}

func printRecoveryCodes(set *models.RecoveryCodeSet) {
	fmt.Println("Store these codes somewhere safe. Each one works exactly once,")
	fmt.Println("and they will not be shown again:")
	fmt.Println()
	for _, code := range set.Codes {
		fmt.Printf("  %s\n", code)
	}
}

func init() {
	twofaSetupCmd.Flags().String("qr", "", "write the enrollment QR code PNG to a file")
	twofaRotateCmd.Flags().String("qr", "", "write the rotation QR code PNG to a file")
	twofaRecoveryCmd.Flags().StringP("output", "o", "", "write the codes to a file instead of stdout")

	twofaCmd.AddCommand(twofaStatusCmd)
	twofaCmd.AddCommand(twofaSetupCmd)
	twofaCmd.AddCommand(twofaRotateCmd)
	twofaCmd.AddCommand(twofaVerifyCmd)
	twofaCmd.AddCommand(twofaRecoveryCmd)

	rootCmd.AddCommand(twofaCmd)
}
