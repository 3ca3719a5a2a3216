package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
)

// DefaultCaptions is the rotation used when no caption endpoint is configured.
var DefaultCaptions = []string{
	"Take a moment with this one.",
	"Another view, another story.",
	"Look closer. There is always something new.",
	"Breathe in. The next one is already on its way.",
	"Some pictures need no explanation.",
}

// CannedCaptioner rotates through a fixed caption list. The prompt picks the starting offset so
// different sessions open on different lines while staying deterministic.
type CannedCaptioner struct {
	Captions []string
}

// NewCannedCaptioner creates a [CannedCaptioner], using [DefaultCaptions] when captions is empty.
func NewCannedCaptioner(captions ...string) *CannedCaptioner {
	if len(captions) == 0 {
		captions = DefaultCaptions
	}
	return &CannedCaptioner{Captions: captions}
}

// Caption returns the caption for index under prompt.
func (c *CannedCaptioner) Caption(_ context.Context, index int, _ string, prompt string) (string, error) {
	if len(c.Captions) == 0 {
		return "", nil
	}

	h := fnv.New32a()
	h.Write([]byte(prompt))
	n := len(c.Captions)
	offset := int(h.Sum32() % uint32(n))
	return c.Captions[((index%n)+offset+n)%n], nil
}

type captionRequest struct {
	Prompt   string `json:"prompt"`
	Index    int    `json:"index"`
	ImageURL string `json:"image_url"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

// HTTPCaptioner asks a remote caption service for each slide.
type HTTPCaptioner struct {
	api  *APIService
	path string
}

// NewHTTPCaptioner creates an [HTTPCaptioner] that POSTs to endpoint. apiKey, when set, is sent as a bearer token.
func NewHTTPCaptioner(endpoint, apiKey string, client *http.Client) *HTTPCaptioner {
	api := NewAPIService(strings.TrimRight(endpoint, "/"), client)
	if apiKey != "" {
		api.WithHeader("Authorization", "Bearer "+apiKey)
	}
	return &HTTPCaptioner{api: api}
}

// Caption posts {prompt, index, image_url} and returns the reply's caption field.
func (c *HTTPCaptioner) Caption(ctx context.Context, index int, imageURL, prompt string) (string, error) {
	var out captionResponse
	req := captionRequest{Prompt: prompt, Index: index, ImageURL: imageURL}
	if err := c.api.PostJSON(ctx, c.path, req, &out); err != nil {
		return "", fmt.Errorf("failed to generate caption: %w", err)
	}
	return strings.TrimSpace(out.Caption), nil
}
