package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/securetransfer/server/internal/client"
	"github.com/securetransfer/server/internal/config"
	"github.com/securetransfer/server/pkg/utils"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token for this server",
		Long: `Store the JWT issued by your identity provider. The token is checked
against the server before it is saved.

  securetransfer login --token eyJhbGciOi...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}

			probe := client.New(a.profile.ServerURL, token)
			if _, err := probe.ListSent(cmd.Context(), 1, 1); err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
					return errors.New("invalid token: server returned 401")
				}
				return fmt.Errorf("validating token: %w", err)
			}

			a.profile.Token = token
			if err := SaveProfile(a.profile); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(a.out, "Logged in to %s\n", a.profile.ServerURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Session JWT")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ClearProfile(); err != nil {
				return fmt.Errorf("clearing config: %w", err)
			}
			fmt.Fprintln(a.out, "Logged out.")
			return nil
		},
	}
}

// newTokenCmd mints a development JWT with the server's JWT_SECRET.
func newTokenCmd(a *app) *cobra.Command {
	var (
		userID string
		email  string
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development session token",
		Long: `Sign a session token with the server secret (JWT_SECRET, read from the
environment or ENV_FILE) for local testing.

  securetransfer token --email alice@example.com
  securetransfer token --email alice@example.com --user <uuid> --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			id := uuid.New()
			if userID != "" {
				parsed, err := uuid.Parse(userID)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				id = parsed
			}

			cfg := config.Load()
			utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
			token, err := utils.GenerateToken(id, email)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}

			if save {
				a.profile.Token = token
				if err := SaveProfile(a.profile); err != nil {
					return fmt.Errorf("saving config: %w", err)
				}
			}

			if a.jsonOut {
				writeJSON(a, map[string]string{"userId": id.String(), "email": email, "token": token})
				return nil
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id (default: random)")
	cmd.Flags().StringVar(&email, "email", "", "Email address carried in the token")
	cmd.Flags().BoolVar(&save, "save", false, "Store the token in the CLI config")
	return cmd
}
