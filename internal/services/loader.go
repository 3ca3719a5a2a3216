package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/joip/internal/shared"
)

// maxImageBytes bounds how much of an image body is read when warming it.
const maxImageBytes = 32 << 20

// ImageLoader fetches image bodies so they are known to be reachable before display.
// URLs that loaded once are remembered, which lets a preload make the following display instant.
type ImageLoader struct {
	httpClient *http.Client
	userAgent  string
	logger     *log.Logger

	mu     sync.Mutex
	loaded map[string]struct{}
}

// NewImageLoader creates an [ImageLoader].
func NewImageLoader(client *http.Client, userAgent string, logger *log.Logger) *ImageLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = shared.NopLogger()
	}
	return &ImageLoader{httpClient: client, userAgent: userAgent, logger: logger, loaded: make(map[string]struct{})}
}

// Load downloads url and reports whether it produced an image. Cancelling ctx aborts the transfer.
func (l *ImageLoader) Load(ctx context.Context, url string) error {
	if l.Loaded(url) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	defer resp.Body.Close()

	if !statusOK(resp.StatusCode) {
		return fmt.Errorf("%w: image status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: unexpected content type %q", shared.ErrInvalidInput, ct)
	}

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	l.mu.Lock()
	l.loaded[url] = struct{}{}
	l.mu.Unlock()

	l.logger.Debug("image loaded", "url", url)
	return nil
}

// Loaded reports whether url has already been loaded successfully.
func (l *ImageLoader) Loaded(url string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.loaded[url]
	return ok
}
