package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jrsteele09/go-workforce-client/hrclient"
	"github.com/jrsteele09/go-workforce-client/oauthmodel"
	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Sign in with an email and password. The password is read from
WORKFORCE_PASSWORD when --password is not given, and prompted for when
neither is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("WORKFORCE_PASSWORD")
		}
		if password == "" {
			var err error
			if password, err = promptPassword(loginEmail); err != nil {
				return err
			}
		}
		c, release, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer release()
		return runLogin(cmd.Context(), cmd.OutOrStdout(), c, loginEmail, password)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, release, err := newClient(cmd)
		if err != nil {
			return err
		}
		defer release()
		return runLogout(cmd.Context(), cmd.OutOrStdout(), c)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	_ = loginCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(loginCmd, logoutCmd)
}

func promptPassword(email string) (string, error) {
	var password string
	err := huh.NewInput().
		Title("Password for " + email).
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("password is required")
			}
			return nil
		}).
		Value(&password).
		Run()
	return password, err
}

func runLogin(ctx context.Context, w io.Writer, c *hrclient.Client, email, password string) error {
	login := c.Login
	if asAdmin {
		login = c.AdminLogin
	}
	p, err := login(ctx, email, password)
	if err != nil {
		return err
	}
	if p == nil {
		p = &oauthmodel.Principal{Email: email}
	}
	if jsonOutput {
		return json.NewEncoder(w).Encode(p)
	}
	fmt.Fprintln(w, formatPrincipal(p))
	return nil
}

func formatPrincipal(p *oauthmodel.Principal) string {
	tenant := p.TenantID
	if tenant == "" {
		tenant = "-"
	}
	return fmt.Sprintf(`Signed in:  %s
Tenant:     %s
Roles:      %s`, p.Email, tenant, strings.Join(p.Roles, ", "))
}

func runLogout(ctx context.Context, w io.Writer, c *hrclient.Client) error {
	a := audience(c)
	if _, err := a.Auth.Restore(); err != nil {
		return err
	}
	if err := a.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Signed out of the %s API\n", a.Auth.Audience())
	return nil
}
