package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/articvpn/vpnctl/internal/common"
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, err := GetSimpleText(app.reader, "Username", os.Stdout)
		if err != nil {
			return err
		}
		email, err := GetSimpleText(app.reader, "Email", os.Stdout)
		if err != nil {
			return err
		}
		password, err := GetPassword("Password", os.Stdout)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(password)

		if err := app.Session.Signup(cmd.Context(), username, email, string(password)); err != nil {
			return err
		}
		fmt.Printf("Account created. Signed in as %s.\n", username)

		enroll, err := Confirm(app.reader, "Enable two-factor auth now?", os.Stdout)
		if err != nil || !enroll {
			return err
		}
		return runTwoFAEnrollment(cmd, "")
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to your account",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, err := GetSimpleText(app.reader, "Username", os.Stdout)
		if err != nil {
			return err
		}
		password, err := GetPassword("Password", os.Stdout)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(password)

		code, _ := cmd.Flags().GetString("code")
		if code == "" {
			code, err = GetSimpleText(app.reader, "Two-factor code (press Enter to skip)", os.Stdout)
			if err != nil {
				return err
			}
		}

		if err := app.Session.Login(cmd.Context(), username, string(password), code); err != nil {
			return err
		}
		fmt.Printf("Signed in as %s.\n", username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		app.quietNav.Store(true)
		defer app.quietNav.Store(false)
		if err := app.Session.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("code", "", "two-factor code")

	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
