package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/scout/internal/auth"
	"github.com/desertthunder/scout/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin signs in against the backend and persists the credential pair.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	username := cmd.StringArg("username")
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	password := cmd.String("password")
	if password == "" {
		r.writePlain("Password: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}
	if password == "" {
		return fmt.Errorf("%w: password", shared.ErrMissingArgument)
	}

	token, err := auth.Login(ctx, r.httpClient, r.config.Backend.BaseURL, username, password)
	if err != nil {
		return err
	}

	r.creds.Set(token)
	if path := shared.ExpandPath(r.config.Session.CredentialsPath); path != "" {
		if err := auth.SaveCredentials(path, token); err != nil {
			r.logger.Warn("failed to save credentials", "error", err)
		}
	}

	r.logger.Info("signed in", "user", username)
	return r.writePlain("✓ Signed in as %s\n", username)
}

// AuthStatus shows the local session state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token := r.creds.Get()
	if token == nil {
		return r.writePlain("✗ Not signed in\n")
	}

	r.writePlain("✓ Signed in\n")
	if token.Expiry.IsZero() {
		r.writePlain("Access token: no recorded expiry\n")
	} else if token.Valid() {
		r.writePlain("Access token: valid for %s\n", time.Until(token.Expiry).Round(time.Second))
	} else {
		r.writePlain("Access token: expired (refreshed on next request)\n")
	}
	if token.RefreshToken == "" {
		r.writePlain("Refresh token: missing — session ends when the access token expires\n")
	}
	return nil
}

// AuthLogout ends the session locally and tells the backend, best effort.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.creds.Get() == nil {
		return r.writePlain("✗ Not signed in\n")
	}

	if err := r.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
		r.logger.Debug("logout call failed, clearing local session anyway", "error", err)
	}

	r.custodian.EndSession()
	return r.writePlain("✓ Signed out\n")
}
