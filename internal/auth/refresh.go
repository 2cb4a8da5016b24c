package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/scout/internal/shared"
	"golang.org/x/oauth2"
)

// tokenResponse mirrors the backend token payload returned by the auth endpoints.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

// token converts the wire payload into an [oauth2.Token] with an absolute expiry.
func (t tokenResponse) token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// NewRefreshFunc returns a [RefreshFunc] that POSTs the refresh token to
// the backend's /auth/refresh endpoint.
//
// The refresh call deliberately bypasses the resilient client: it must never
// recurse into 401 handling.
func NewRefreshFunc(baseURL string, httpClient *http.Client) RefreshFunc {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return func(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
		body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal refresh request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/auth/refresh", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create refresh request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			var errResp struct {
				Detail string `json:"detail"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
				return nil, fmt.Errorf("refresh rejected (status %d): %s", resp.StatusCode, errResp.Detail)
			}
			return nil, fmt.Errorf("refresh rejected: status %d", resp.StatusCode)
		}

		var tr tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return nil, fmt.Errorf("failed to decode refresh response: %w", err)
		}
		if tr.AccessToken == "" {
			return nil, fmt.Errorf("refresh response missing access token")
		}

		return tr.token(), nil
	}
}
