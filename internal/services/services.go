// package services talks to the Reddit API and the helper endpoints the slideshow depends on
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/joip/internal/shared"
)

const (
	DefaultTokenURL  = "https://www.reddit.com/api/v1/access_token"
	DefaultAuthURL   = "https://www.reddit.com/api/v1/authorize"
	DefaultAPIBase   = "https://oauth.reddit.com"
	DefaultUserAgent = "web:joip-app:v1.0 (by /u/joipapp)"

	// DefaultPostLimit is the listing size used when a caller passes a non-positive limit.
	DefaultPostLimit = 25
)

// Durable store keys holding the Reddit credential.
const (
	KeyAccessToken = "reddit_access_token"
	KeyExpiresAt   = "reddit_token_expires_at"
)

// KVStore is a durable string key/value store. Get reports ok=false for a missing key.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// CredentialProvider yields a bearer token for the content API.
type CredentialProvider interface {
	EnsureCredential(ctx context.Context) (string, error)
}

// MediaFetcher resolves a single channel into media URLs. Failures degrade to an empty slice.
type MediaFetcher interface {
	FetchChannelMedia(ctx context.Context, channel string, limit int) []string
}

// ChannelValidator checks whether a channel exists.
type ChannelValidator interface {
	ValidateChannel(ctx context.Context, channel string) (bool, error)
}

// AuthErrorKind classifies an [AuthError].
type AuthErrorKind int

const (
	AuthUnavailable AuthErrorKind = iota
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// AuthError reports that a credential could not be obtained.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("auth %s", e.Kind)
	}
	return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrAuthUnavailable}
	}
	return []error{shared.ErrAuthUnavailable, e.Err}
}

// FetchErrorKind classifies a [FetchError].
type FetchErrorKind int

const (
	FetchNoToken FetchErrorKind = iota
	FetchHTTP
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchNoToken:
		return "no token"
	case FetchHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// FetchError reports that a channel listing could not be retrieved.
//
// Status is zero for transport failures that never produced a response.
type FetchError struct {
	Kind    FetchErrorKind
	Channel string
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchNoToken:
		return fmt.Sprintf("fetch r/%s: no token: %v", e.Channel, e.Err)
	default:
		if e.Status == 0 {
			return fmt.Sprintf("fetch r/%s: %s", e.Channel, e.Message)
		}
		return fmt.Sprintf("fetch r/%s: status %d: %s", e.Channel, e.Status, e.Message)
	}
}

func (e *FetchError) Unwrap() []error {
	sentinel := shared.ErrAPIRequest
	if e.Kind == FetchNoToken {
		sentinel = shared.ErrNoToken
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// ExtractionError reports a post whose payload could not be turned into media URLs.
type ExtractionError struct {
	PostID string
	Index  int
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract post %d (%s): %v", e.Index, e.PostID, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrMalformedPost}
	}
	return []error{shared.ErrMalformedPost, e.Err}
}

// IsAuthError reports whether err carries an [AuthError].
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func statusOK(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
