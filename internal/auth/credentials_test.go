package auth

import (
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestStore(t *testing.T) {
	t.Run("empty store returns nil", func(t *testing.T) {
		store := NewStore()
		if store.Get() != nil {
			t.Error("expected nil token from empty store")
		}
	})

	t.Run("set and get round-trip", func(t *testing.T) {
		store := NewStore()
		store.Set(&oauth2.Token{AccessToken: "access", RefreshToken: "refresh"})

		token := store.Get()
		if token == nil {
			t.Fatal("expected token, got nil")
		}
		if token.AccessToken != "access" {
			t.Errorf("expected access token 'access', got %s", token.AccessToken)
		}
		if token.RefreshToken != "refresh" {
			t.Errorf("expected refresh token 'refresh', got %s", token.RefreshToken)
		}
	})

	t.Run("get returns a copy", func(t *testing.T) {
		store := NewStore()
		store.Set(&oauth2.Token{AccessToken: "original"})

		token := store.Get()
		token.AccessToken = "mutated"

		if store.Get().AccessToken != "original" {
			t.Error("mutating the returned token should not affect the store")
		}
	})

	t.Run("set copies its argument", func(t *testing.T) {
		store := NewStore()
		token := &oauth2.Token{AccessToken: "original"}
		store.Set(token)
		token.AccessToken = "mutated"

		if store.Get().AccessToken != "original" {
			t.Error("mutating the argument after Set should not affect the store")
		}
	})

	t.Run("set nil signs out", func(t *testing.T) {
		store := NewStore()
		store.Set(&oauth2.Token{AccessToken: "access"})
		store.Set(nil)

		if store.Get() != nil {
			t.Error("expected nil token after Set(nil)")
		}
	})

	t.Run("clear removes both tokens", func(t *testing.T) {
		store := NewStore()
		store.Set(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		})
		store.Clear()

		if store.Get() != nil {
			t.Error("expected nil token after Clear")
		}
	})
}
