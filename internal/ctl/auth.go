package ctl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"expenso/internal/core"
)

func (r *runner) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		Long: `Sign in with your Expenso account. The password can also come from
EXPENSO_PASSWORD so it does not end up in shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = r.v.GetString("password")
			}
			creds := core.Credentials{
				Email:    strings.ToLower(strings.TrimSpace(email)),
				Password: password,
			}
			if creds.Email == "" || creds.Password == "" {
				return errors.New("email and password are required")
			}
			return r.withApp(cmd, func(app *App) error {
				if err := app.Session.Login(cmd.Context(), creds); err != nil {
					return fmt.Errorf("login failed: %s", app.Session.State().Auth.Error)
				}
				u := app.Session.State().Auth.User
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Signed in as %s <%s>", u.Name, u.Email)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or EXPENSO_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (r *runner) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(app *App) error {
				if !app.Session.State().Auth.IsAuthenticated {
					fmt.Fprintln(cmd.OutOrStdout(), subtleStyle.Render("Not logged in."))
					return nil
				}
				app.Session.Logout(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Logged out."))
				return nil
			})
		},
	}
}

func (r *runner) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withAuth(cmd, func(app *App) error {
				u := app.Session.State().Auth.User
				fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", u.Name, u.Email)
				return nil
			})
		},
	}
}
