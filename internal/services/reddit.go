package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
	"golang.org/x/time/rate"
)

// RedditOpts configures a [RedditService].
type RedditOpts struct {
	BaseURL           string
	UserAgent         string
	Credentials       CredentialProvider
	HTTPClient        *http.Client
	RequestsPerSecond float64
	Burst             int
	Logger            *log.Logger
}

// RedditService fetches channel listings and turns them into media URLs.
type RedditService struct {
	baseURL     string
	userAgent   string
	credentials CredentialProvider
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *log.Logger
}

type listing struct {
	Data struct {
		Children []struct {
			Data Post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type apiErrorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
}

// NewRedditService creates a [RedditService], filling defaults for the base URL, user agent and limiter.
func NewRedditService(opts RedditOpts) *RedditService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBase
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}
	if opts.Logger == nil {
		opts.Logger = shared.NopLogger()
	}

	return &RedditService{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		userAgent:   opts.UserAgent,
		credentials: opts.Credentials,
		httpClient:  opts.HTTPClient,
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		logger:      opts.Logger,
	}
}

// NormalizeChannel strips an "r/" prefix and surrounding whitespace.
func (s *RedditService) NormalizeChannel(name string) string {
	return models.NormalizeChannel(name)
}

// FetchChannelPosts returns the channel's hot listing in provider order.
//
// A missing token yields a [FetchError] of kind [FetchNoToken] without any request being made.
func (s *RedditService) FetchChannelPosts(ctx context.Context, channel string, limit int) ([]Post, error) {
	channel = models.NormalizeChannel(channel)
	if channel == "" {
		return nil, &FetchError{Kind: FetchHTTP, Channel: channel, Message: "empty channel name", Err: shared.ErrInvalidInput}
	}
	if limit <= 0 {
		limit = DefaultPostLimit
	}

	endpoint := fmt.Sprintf("/r/%s/hot?limit=%d", url.PathEscape(channel), limit)

	var body listing
	if err := s.doRequest(ctx, channel, endpoint, &body); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		posts = append(posts, child.Data)
	}

	s.logger.Debug("fetched channel listing", "channel", channel, "posts", len(posts))
	return posts, nil
}

// ExtractMedia flattens posts into media URLs. It never fails: a post without recognizable media
// contributes nothing, and a malformed post is logged and skipped.
func (s *RedditService) ExtractMedia(posts []Post) []string {
	media := []string{}
	for i, post := range posts {
		urls, err := extractPost(i, post)
		if err != nil {
			s.logger.Warn("skipping post", "error", err)
			continue
		}
		media = append(media, urls...)
	}
	return media
}

// extractPost isolates one post so a panic, or a decode failure that leaves no media, only drops that post.
func extractPost(i int, post Post) (urls []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			urls, err = nil, &ExtractionError{PostID: post.ID, Index: i, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	shape := post.Shape()
	if _, ok := shape.(Unrecognized); ok {
		if decodeErr := post.Malformed(); decodeErr != nil {
			return nil, &ExtractionError{PostID: post.ID, Index: i, Err: decodeErr}
		}
	}
	return shape.URLs(), nil
}

// FetchChannelMedia fetches and extracts one channel. Any fetch failure yields an empty slice.
func (s *RedditService) FetchChannelMedia(ctx context.Context, channel string, limit int) []string {
	posts, err := s.FetchChannelPosts(ctx, channel, limit)
	if err != nil {
		s.logger.Warn("channel fetch failed", "channel", channel, "error", err)
		return []string{}
	}
	return s.ExtractMedia(posts)
}

// ValidateChannel reports whether the channel exists by reading its about page.
//
// A missing or non-2xx response means the channel is invalid; only token and transport failures are errors.
func (s *RedditService) ValidateChannel(ctx context.Context, channel string) (bool, error) {
	channel = models.NormalizeChannel(channel)
	if channel == "" {
		return false, nil
	}

	var about struct {
		Data struct {
			DisplayName string `json:"display_name"`
		} `json:"data"`
	}

	err := s.doRequest(ctx, channel, fmt.Sprintf("/r/%s/about", url.PathEscape(channel)), &about)
	if err != nil {
		if fetchErr, ok := err.(*FetchError); ok && fetchErr.Kind == FetchHTTP && fetchErr.Status != 0 {
			return false, nil
		}
		return false, err
	}
	return about.Data.DisplayName != "", nil
}

// doRequest performs an authenticated GET against the API and decodes the JSON body into result.
func (s *RedditService) doRequest(ctx context.Context, channel, endpoint string, result any) error {
	token, err := s.credentials.EnsureCredential(ctx)
	if err != nil || token == "" {
		return &FetchError{Kind: FetchNoToken, Channel: channel, Err: err}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return &FetchError{Kind: FetchHTTP, Channel: channel, Message: "rate limiter", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &FetchError{Kind: FetchHTTP, Channel: channel, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Kind: FetchHTTP, Channel: channel, Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	if !statusOK(resp.StatusCode) {
		return &FetchError{Kind: FetchHTTP, Channel: channel, Status: resp.StatusCode, Message: errorMessage(data, resp.Status)}
	}

	var apiErr apiErrorBody
	if json.Unmarshal(data, &apiErr) == nil && len(apiErr.Error) > 0 && string(apiErr.Error) != "null" {
		status := resp.StatusCode
		if code, err := strconv.Atoi(string(apiErr.Error)); err == nil {
			status = code
		}
		return &FetchError{Kind: FetchHTTP, Channel: channel, Status: status, Message: errorMessage(data, "request failed")}
	}

	if err := json.Unmarshal(data, result); err != nil {
		return &FetchError{Kind: FetchHTTP, Channel: channel, Status: resp.StatusCode, Message: "failed to decode response", Err: err}
	}
	return nil
}

// errorMessage pulls a human-readable message out of an error body, falling back to fallback.
func errorMessage(data []byte, fallback string) string {
	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err == nil {
		switch {
		case body.Message != "":
			return body.Message
		case body.Reason != "":
			return body.Reason
		}
	}
	return fallback
}
