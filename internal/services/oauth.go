package services

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// RedditAuthOpts configures a [RedditAuth].
type RedditAuthOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	HTTPClient   *http.Client
}

// RedditAuth runs the user authorization-code flow and hands the resulting token to a [TokenCache].
type RedditAuth struct {
	config     *oauth2.Config
	cache      *TokenCache
	httpClient *http.Client
}

// NewRedditAuth creates a [RedditAuth] storing tokens through cache.
func NewRedditAuth(opts RedditAuthOpts, cache *TokenCache) *RedditAuth {
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &RedditAuth{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       []string{"read"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   opts.AuthURL,
				TokenURL:  opts.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		cache:      cache,
		httpClient: opts.HTTPClient,
	}
}

// AuthCodeURL returns the authorization page URL for state, requesting a permanent grant.
func (a *RedditAuth) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.SetAuthURLParam("duration", "permanent"))
}

// RedirectURI returns the configured callback URL.
func (a *RedditAuth) RedirectURI() string {
	return a.config.RedirectURL
}

// Exchange trades an authorization code for a token and stores it as the active credential.
func (a *RedditAuth) Exchange(ctx context.Context, code string) (Credential, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return Credential{}, &AuthError{Kind: AuthUnavailable, Err: fmt.Errorf("failed to exchange auth code: %w", err)}
	}
	return a.cache.StoreToken(token)
}
