// JSON client for auxiliary HTTP endpoints such as the caption service
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/joip/internal/shared"
)

var errAPIStatus = fmt.Errorf("%w: unexpected response", shared.ErrAPIRequest)

// APIService posts JSON documents to a base URL and decodes JSON replies.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
}

// NewAPIService creates a new API service instance rooted at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIService{baseURL: baseURL, httpClient: client, headers: http.Header{}}
}

// WithHeader adds a header sent on every request, such as an Authorization bearer.
func (a *APIService) WithHeader(key, value string) *APIService {
	a.headers.Set(key, value)
	return a
}

// Post sends payload as JSON to path and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, payload any) (*APIResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, values := range a.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		IsJSON:     json.Valid(body),
	}, nil
}

// PostJSON sends payload to path and decodes a 2xx JSON reply into result.
func (a *APIService) PostJSON(ctx context.Context, path string, payload, result any) error {
	resp, err := a.Post(ctx, path, payload)
	if err != nil {
		return err
	}
	if !statusOK(resp.StatusCode) {
		return fmt.Errorf("%w: status %d", errAPIStatus, resp.StatusCode)
	}
	if !resp.IsJSON {
		return fmt.Errorf("%w: response is not JSON", errAPIStatus)
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
