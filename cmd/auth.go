package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/desertthunder/joip/internal/server"
	"github.com/desertthunder/joip/internal/services"
	"github.com/desertthunder/joip/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the Reddit authorization-code flow through a local callback server and stores the
// resulting token as the active credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}
	if !r.config.HasRedditCredentials() {
		return fmt.Errorf("%w: set reddit.client_id and reddit.client_secret in config.toml or %s/%s",
			shared.ErrMissingCredentials, shared.EnvRedditClientID, shared.EnvRedditClientSecret)
	}

	cred, err := r.doOAuth(ctx, r.auth, cmd.Duration("timeout"), cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	r.logger.Info("reddit authorization complete", "expires_at", cred.ExpiresAt())
	r.writePlain("✓ Reddit connected\n")
	return r.writePlain("Token expires: %s\n", cred.ExpiresAt().Format(time.RFC1123))
}

// AuthToken acquires a fresh application credential with the client-credentials grant.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	cred, err := r.tokens.AcquireApplicationCredential(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Application credential acquired (expires %s)\n", cred.ExpiresAt().Format(time.RFC1123))
}

// AuthStatus reports whether a valid credential is stored. It never contacts Reddit.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	cred, ok := r.tokens.Stored()
	status := map[string]any{
		"configured":    r.config.HasRedditCredentials(),
		"authenticated": ok && r.tokens.HasValidCredential(),
	}
	if ok {
		status["expires_at"] = cred.ExpiresAt().UTC().Format(time.RFC3339)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlainHeader("Reddit Authentication")
	if status["configured"] == true {
		r.writePlain("Client credentials: ✓ configured\n")
	} else {
		r.writePlain("Client credentials: ✗ missing\n")
	}

	switch {
	case !ok:
		r.writePlain("Token: ✗ none stored\n")
	case status["authenticated"] == true:
		r.writePlain("Token: ✓ valid until %s\n", cred.ExpiresAt().Format(time.RFC1123))
	default:
		r.writePlain("Token: ✗ expired at %s\n", cred.ExpiresAt().Format(time.RFC1123))
	}
	return nil
}

// AuthLogout removes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireStore(); err != nil {
		return err
	}

	if err := r.tokens.Invalidate(); err != nil {
		return err
	}
	r.logger.Info("credential removed")
	return r.writePlain("✓ Logged out\n")
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, auth *services.RedditAuth, timeout time.Duration, noBrowser bool) (services.Credential, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	state, err := shared.GenerateState()
	if err != nil {
		return services.Credential{}, fmt.Errorf("failed to generate state token: %w", err)
	}

	listen, err := callbackAddr(auth.RedirectURI())
	if err != nil {
		return services.Credential{}, err
	}

	authURL := auth.AuthCodeURL(state)
	oauthHandler := server.NewOAuthHandler(auth, state, auth.RedirectURI())
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(oauthHandler)

	srvCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	httpServer := server.New(listen, router, r.logger)
	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", server.Addr(listen))
		serverErrors <- httpServer.Run(srvCtx)
	}()

	if noBrowser {
		r.writePlain("Open this URL in your browser:\n%s\n\n", authURL)
	} else {
		r.writePlain("→ Opening browser for Reddit authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
		}
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		if err == nil {
			err = fmt.Errorf("callback server stopped")
		}
		return services.Credential{}, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return services.Credential{}, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return services.Credential{}, ctx.Err()
	}

	stopServer()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return services.Credential{}, fmt.Errorf("authorization failed: %w", result.Error())
	}
	return result.Credential, nil
}

// callbackAddr derives the listen address from the redirect URI's host and port.
func callbackAddr(redirectURI string) (shared.ServerConfig, error) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return shared.ServerConfig{}, fmt.Errorf("%w: invalid redirect_uri %q", shared.ErrInvalidConfig, redirectURI)
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		host, portStr = u.Hostname(), "80"
		if u.Scheme == "https" {
			portStr = "443"
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return shared.ServerConfig{}, fmt.Errorf("%w: invalid redirect_uri port %q", shared.ErrInvalidConfig, portStr)
	}
	return shared.ServerConfig{Host: host, Port: port}, nil
}
