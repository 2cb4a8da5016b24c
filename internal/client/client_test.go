package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/scout/internal/auth"
	"github.com/desertthunder/scout/internal/shared"
	tu "github.com/desertthunder/scout/internal/testing"
	"golang.org/x/oauth2"
)

func signedInStore(access string) *auth.Store {
	store := auth.NewStore()
	store.Set(&oauth2.Token{
		AccessToken:  access,
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	})
	return store
}

func newTestClient(store *auth.Store, serverURL string) *Client {
	custodian := auth.NewCustodian(store, auth.NewRefreshFunc(serverURL, nil), nil)
	return New(serverURL, nil, store, custodian, nil)
}

func TestClient(t *testing.T) {
	t.Run("successful call attaches bearer token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer access" {
				t.Errorf("expected Authorization header, got %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{"taskId": "t-1"})
		}))
		defer server.Close()

		c := newTestClient(signedInStore("access"), server.URL)

		var result struct {
			TaskID string `json:"taskId"`
		}
		if err := c.Get(context.Background(), "/task/t-1/status", &result); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.TaskID != "t-1" {
			t.Errorf("expected decoded taskId t-1, got %s", result.TaskID)
		}
	})

	t.Run("401 triggers refresh and replay", func(t *testing.T) {
		var apiCalls, refreshCalls atomic.Int32

		mux := http.NewServeMux()
		mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			refreshCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]any{
				"accessToken":  "renewed",
				"refreshToken": "refresh2",
				"expiresIn":    1800,
			})
		})
		mux.HandleFunc("/task", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer renewed" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"detail": "Token expired"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"taskId": "t-2"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		store := signedInStore("stale")
		c := newTestClient(store, server.URL)

		var result struct {
			TaskID string `json:"taskId"`
		}
		if err := c.Post(context.Background(), "/task", map[string]string{"query": "test"}, &result); err != nil {
			t.Fatalf("expected replay to succeed, got %v", err)
		}
		if result.TaskID != "t-2" {
			t.Errorf("expected decoded response after replay, got %s", result.TaskID)
		}
		if refreshCalls.Load() != 1 {
			t.Errorf("expected exactly 1 refresh call, got %d", refreshCalls.Load())
		}
		if apiCalls.Load() != 2 {
			t.Errorf("expected original call plus one replay, got %d", apiCalls.Load())
		}
		if store.Get().AccessToken != "renewed" {
			t.Error("expected store updated with renewed token")
		}
	})

	t.Run("second 401 after replay is AuthExpired", func(t *testing.T) {
		var apiCalls atomic.Int32

		mux := http.NewServeMux()
		mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"accessToken":  "renewed",
				"refreshToken": "refresh2",
				"expiresIn":    1800,
			})
		})
		mux.HandleFunc("/task/t-3/status", func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Token revoked"})
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		c := newTestClient(signedInStore("stale"), server.URL)

		err := c.Get(context.Background(), "/task/t-3/status", nil)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if apiCalls.Load() != 2 {
			t.Errorf("expected exactly one replay (2 calls), got %d", apiCalls.Load())
		}
	})

	t.Run("401 for a rotated credential is a hard failure", func(t *testing.T) {
		store := signedInStore("old")

		var apiCalls, refreshCalls atomic.Int32
		transport := tu.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			apiCalls.Add(1)
			// The pair rotates while this request is in flight.
			store.Set(&oauth2.Token{
				AccessToken:  "rotated",
				RefreshToken: "refresh2",
				Expiry:       time.Now().Add(time.Hour),
			})
			return tu.JSONResponse(http.StatusUnauthorized, `{"detail": "Token expired"}`), nil
		})

		custodian := auth.NewCustodian(store, func(ctx context.Context, rt string) (*oauth2.Token, error) {
			refreshCalls.Add(1)
			return nil, errors.New("should not be called")
		}, nil)
		c := New("http://backend.test", &http.Client{Transport: transport}, store, custodian, nil)

		err := c.Get(context.Background(), "/task/t-8/status", nil)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if apiCalls.Load() != 1 {
			t.Errorf("expected no replay with the rotated credential, got %d calls", apiCalls.Load())
		}
		if refreshCalls.Load() != 0 {
			t.Errorf("expected no refresh cycle, got %d", refreshCalls.Load())
		}
	})

	t.Run("401 with no refresh token ends session without replay", func(t *testing.T) {
		var apiCalls atomic.Int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		store := auth.NewStore()
		store.Set(&oauth2.Token{AccessToken: "access-only"})
		custodian := auth.NewCustodian(store, auth.NewRefreshFunc(server.URL, nil), nil)

		var sessionEnds atomic.Int32
		custodian.SetOnSessionEnd(func() { sessionEnds.Add(1) })

		c := New(server.URL, nil, store, custodian, nil)

		err := c.Get(context.Background(), "/whoami", nil)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Fatalf("expected ErrAuthExpired, got %v", err)
		}
		if apiCalls.Load() != 1 {
			t.Errorf("expected no replay, got %d calls", apiCalls.Load())
		}
		if sessionEnds.Load() != 1 {
			t.Errorf("expected session ended once, got %d", sessionEnds.Load())
		}
		if store.Get() != nil {
			t.Error("expected credential store cleared")
		}
	})

	t.Run("403 is Forbidden with server message", func(t *testing.T) {
		transport := tu.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			return tu.JSONResponse(http.StatusForbidden, `{"detail": "Not your task"}`), nil
		})

		store := signedInStore("access")
		custodian := auth.NewCustodian(store, auth.NewRefreshFunc("http://backend.test", nil), nil)
		c := New("http://backend.test", &http.Client{Transport: transport}, store, custodian, nil)

		err := c.Delete(context.Background(), "/task/t-4")
		if !errors.Is(err, shared.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatal("expected APIError")
		}
		if apiErr.Message != "Not your task" {
			t.Errorf("expected server message passed through, got %q", apiErr.Message)
		}
	})

	t.Run("other non-2xx is RequestFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Query too short"})
		}))
		defer server.Close()

		c := newTestClient(signedInStore("access"), server.URL)

		err := c.Post(context.Background(), "/task", map[string]string{"query": "hi"}, nil)
		if !errors.Is(err, shared.ErrRequestFailed) {
			t.Fatalf("expected ErrRequestFailed, got %v", err)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatal("expected APIError")
		}
		if apiErr.Status != http.StatusUnprocessableEntity {
			t.Errorf("expected status 422, got %d", apiErr.Status)
		}
		if apiErr.Message != "Query too short" {
			t.Errorf("expected detail passed through, got %q", apiErr.Message)
		}
	})

	t.Run("transport failure is NetworkError", func(t *testing.T) {
		transport := tu.NewMockRoundTripper(nil, errors.New("connection refused"))

		store := signedInStore("access")
		custodian := auth.NewCustodian(store, auth.NewRefreshFunc("http://backend.test", nil), nil)
		c := New("http://backend.test", &http.Client{Transport: transport}, store, custodian, nil)

		if err := c.Get(context.Background(), "/task/t-5/status", nil); !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
	})

	t.Run("demo mode skips auth entirely", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "" {
				t.Errorf("expected no Authorization header in demo mode, got %q", got)
			}
			json.NewEncoder(w).Encode(map[string]string{"taskId": "t-6"})
		}))
		defer server.Close()

		c := newTestClient(auth.NewStore(), server.URL)
		c.SetDemoMode(true)

		if err := c.Get(context.Background(), "/task/t-6/status", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("open stream hands back the raw body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Accept"); got != "text/event-stream" {
				t.Errorf("expected event-stream accept header, got %q", got)
			}
			w.Header().Set("Content-Type", "text/event-stream")
			w.Write([]byte("event: progress\ndata: {}\n\n"))
		}))
		defer server.Close()

		c := newTestClient(signedInStore("access"), server.URL)

		body, err := c.OpenStream(context.Background(), "/task/t-7/stream")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer body.Close()

		buf := make([]byte, 64)
		n, _ := body.Read(buf)
		if n == 0 {
			t.Error("expected readable stream body")
		}
	})
}
