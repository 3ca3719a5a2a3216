package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// Credential is an application bearer token and its expiry in epoch milliseconds. It is never mutated.
type Credential struct {
	AccessToken      string `json:"access_token"`
	ExpiresAtEpochMs int64  `json:"expires_at"`
}

// Valid reports whether the credential carries a token and now is strictly before its expiry.
func (c Credential) Valid(now time.Time) bool {
	return c.AccessToken != "" && now.UnixMilli() < c.ExpiresAtEpochMs
}

// ExpiresAt returns the expiry as a [time.Time].
func (c Credential) ExpiresAt() time.Time {
	return time.UnixMilli(c.ExpiresAtEpochMs)
}

// TokenCacheOpts configures a [TokenCache].
type TokenCacheOpts struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Store        KVStore
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// TokenCache manages the application credential for the Reddit API.
//
// Every call reads through the durable [KVStore]; there is no in-memory copy of the token,
// so separate processes sharing the store observe each other's renewals.
// Concurrent renewals are tolerated and the last write wins.
type TokenCache struct {
	store      KVStore
	config     *clientcredentials.Config
	httpClient *http.Client
	now        func() time.Time
	logger     *log.Logger
}

// NewTokenCache creates a [TokenCache]. TokenURL defaults to Reddit's token endpoint.
func NewTokenCache(opts TokenCacheOpts) *TokenCache {
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	return &TokenCache{
		store: opts.Store,
		config: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: opts.HTTPClient,
		now:        time.Now,
		logger:     opts.Logger,
	}
}

// WithNow replaces the clock used for expiry checks.
func (c *TokenCache) WithNow(now func() time.Time) *TokenCache {
	c.now = now
	return c
}

// Stored reads the credential currently held by the store. ok is false when either key is missing or unparseable.
func (c *TokenCache) Stored() (cred Credential, ok bool) {
	token, found, err := c.store.Get(KeyAccessToken)
	if err != nil || !found || token == "" {
		return Credential{}, false
	}

	raw, found, err := c.store.Get(KeyExpiresAt)
	if err != nil || !found {
		return Credential{}, false
	}

	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Credential{}, false
	}
	return Credential{AccessToken: token, ExpiresAtEpochMs: expiresAt}, true
}

// HasValidCredential reports whether the store holds an unexpired credential. It has no side effects.
func (c *TokenCache) HasValidCredential() bool {
	cred, ok := c.Stored()
	return ok && cred.Valid(c.now())
}

// AcquireApplicationCredential performs a client-credentials exchange and stores the result,
// overwriting any prior credential. On failure the store is left untouched.
func (c *TokenCache) AcquireApplicationCredential(ctx context.Context) (Credential, error) {
	if c.config.ClientID == "" || c.config.ClientSecret == "" {
		return Credential{}, &AuthError{Kind: AuthUnavailable, Err: shared.ErrMissingCredentials}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.config.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			c.logger.Warn("token endpoint rejected client credentials", "status", retrieveErr.Response.StatusCode)
		}
		return Credential{}, &AuthError{Kind: AuthUnavailable, Err: err}
	}

	cred := c.credentialFromToken(token)
	if err := c.Store(cred); err != nil {
		return Credential{}, &AuthError{Kind: AuthUnavailable, Err: err}
	}

	c.logger.Debug("acquired application credential", "expires_at", cred.ExpiresAt())
	return cred, nil
}

// EnsureCredential returns the cached token when valid, otherwise acquires a fresh one.
func (c *TokenCache) EnsureCredential(ctx context.Context) (string, error) {
	if cred, ok := c.Stored(); ok && cred.Valid(c.now()) {
		return cred.AccessToken, nil
	}

	cred, err := c.AcquireApplicationCredential(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Invalidate removes the stored credential. Calling it with nothing stored is a no-op.
func (c *TokenCache) Invalidate() error {
	if err := c.store.Remove(KeyAccessToken); err != nil {
		return fmt.Errorf("failed to remove access token: %w", err)
	}
	if err := c.store.Remove(KeyExpiresAt); err != nil {
		return fmt.Errorf("failed to remove token expiry: %w", err)
	}
	return nil
}

// Store writes cred to the durable store, replacing both keys.
func (c *TokenCache) Store(cred Credential) error {
	if err := c.store.Set(KeyAccessToken, cred.AccessToken); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}
	if err := c.store.Set(KeyExpiresAt, strconv.FormatInt(cred.ExpiresAtEpochMs, 10)); err != nil {
		return fmt.Errorf("failed to store token expiry: %w", err)
	}
	return nil
}

// StoreToken stores an [oauth2.Token] obtained elsewhere, such as the authorization-code login.
func (c *TokenCache) StoreToken(token *oauth2.Token) (Credential, error) {
	if token == nil || token.AccessToken == "" {
		return Credential{}, &AuthError{Kind: AuthUnavailable, Err: fmt.Errorf("%w: empty token", shared.ErrInvalidInput)}
	}
	cred := c.credentialFromToken(token)
	return cred, c.Store(cred)
}

// credentialFromToken derives the expiry from expires_in measured against the injected clock. A token
// carrying only an absolute expiry keeps it as is.
func (c *TokenCache) credentialFromToken(token *oauth2.Token) Credential {
	cred := Credential{AccessToken: token.AccessToken}
	switch {
	case token.ExpiresIn > 0:
		cred.ExpiresAtEpochMs = c.now().Add(time.Duration(token.ExpiresIn) * time.Second).UnixMilli()
	case !token.Expiry.IsZero():
		cred.ExpiresAtEpochMs = token.Expiry.UnixMilli()
	default:
		cred.ExpiresAtEpochMs = c.now().Add(defaultTokenLifetime).UnixMilli()
	}
	return cred
}
