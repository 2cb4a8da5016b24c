// package client implements the resilient HTTP client for the research backend.
//
// Every outbound call attaches the current access token, and the response
// pipeline maps failures onto the shared error taxonomy: a first 401 with a
// refresh token available goes through the auth custodian and is replayed
// once; a second 401, or a 401 with nothing to refresh with, ends the
// session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scout/internal/auth"
	"github.com/desertthunder/scout/internal/shared"
)

const defaultBaseURL = "http://localhost:8000"

// APIError carries the HTTP status and server-provided message for a failed
// call. It wraps the matching sentinel from [shared] so callers can branch
// with [errors.Is].
type APIError struct {
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v (status %d): %s", e.kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%v: status %d", e.kind, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// Client is the authenticated HTTP client for the research backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient mirrors httpClient without a timeout; a long-lived event
	// stream must not be cut off by the per-request deadline.
	streamClient *http.Client
	creds        *auth.Store
	custodian    *auth.Custodian
	demoMode     bool
	logger       *log.Logger
}

// New creates a Client. A nil httpClient falls back to [http.DefaultClient];
// an empty baseURL falls back to the local development backend.
func New(baseURL string, httpClient *http.Client, creds *auth.Store, custodian *auth.Custodian, logger *log.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	streamClient := *httpClient
	streamClient.Timeout = 0

	return &Client{
		baseURL:      baseURL,
		httpClient:   httpClient,
		streamClient: &streamClient,
		creds:        creds,
		custodian:    custodian,
		logger:       logger,
	}
}

// SetDemoMode toggles auth gating. In demo mode no Authorization header is
// attached and 401 handling is disabled.
func (c *Client) SetDemoMode(enabled bool) {
	c.demoMode = enabled
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an authenticated GET and decodes the JSON response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.Do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.Do(ctx, http.MethodPost, path, body, result)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do performs an authenticated request, marshalling body to JSON when non-nil
// and decoding a 2xx response into result when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.send(ctx, method, path, body, 0, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// OpenStream performs an authenticated GET and hands back the raw response
// body for streaming reads (e.g. text/event-stream). The caller owns the
// returned reader and must close it.
func (c *Client) OpenStream(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, 0, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// send runs one call through the response pipeline. attempt is the explicit
// per-call counter: a 401 on attempt 0 triggers refresh-and-replay, a 401 on
// any later attempt is a hard authorization failure.
func (c *Client) send(ctx context.Context, method, path string, body any, attempt int, stream bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var sentToken string
	if !c.demoMode {
		if token := c.creds.Get(); token != nil && token.AccessToken != "" {
			sentToken = token.AccessToken
			req.Header.Set("Authorization", "Bearer "+sentToken)
		}
	}

	httpClient := c.httpClient
	if stream {
		req.Header.Set("Accept", "text/event-stream")
		httpClient = c.streamClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	status := resp.StatusCode
	message := decodeErrorMessage(resp.Body)
	resp.Body.Close()

	switch {
	case status == http.StatusUnauthorized && !c.demoMode:
		return c.handleUnauthorized(ctx, method, path, body, attempt, stream, sentToken, message)

	case status == http.StatusForbidden:
		return nil, &APIError{Status: status, Message: message, kind: shared.ErrForbidden}

	default:
		return nil, &APIError{Status: status, Message: message, kind: shared.ErrRequestFailed}
	}
}

// handleUnauthorized implements the 401 branch of the pipeline.
func (c *Client) handleUnauthorized(ctx context.Context, method, path string, body any, attempt int, stream bool, sentToken, message string) (*http.Response, error) {
	token := c.creds.Get()
	if token == nil || token.RefreshToken == "" {
		// Nothing to refresh with: end the session, no replay.
		c.custodian.EndSession()
		return nil, &APIError{Status: http.StatusUnauthorized, Message: message, kind: shared.ErrAuthExpired}
	}

	if attempt > 0 {
		// Already replayed once: hard failure.
		return nil, &APIError{Status: http.StatusUnauthorized, Message: message, kind: shared.ErrAuthExpired}
	}

	if sentToken != "" && token.AccessToken != sentToken {
		// The pair rotated while this call was in flight. A rejection of the
		// old credential says nothing about the new one; surface the failure
		// rather than starting another cycle.
		return nil, &APIError{Status: http.StatusUnauthorized, Message: message, kind: shared.ErrAuthExpired}
	}

	c.logger.Debug("unauthorized response, refreshing credential", "method", method, "path", path)

	// The server rejected the credential we hold, regardless of its local
	// expiry. Force a refresh cycle (joining one already in flight).
	if _, err := c.custodian.Refresh(ctx); err != nil {
		return nil, err
	}

	return c.send(ctx, method, path, body, attempt+1, stream)
}

// decodeErrorMessage pulls the server's detail message out of an error body,
// when there is one.
func decodeErrorMessage(body io.Reader) string {
	var errResp struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&errResp); err != nil {
		return ""
	}
	if errResp.Detail != "" {
		return errResp.Detail
	}
	return errResp.Message
}
