// package auth holds the credential pair and coordinates token refresh.
//
// The [Store] is pure state: the access/refresh pair plus expiry, readable by
// any component. The [Custodian] is the only writer after sign-in; it
// guarantees that concurrent callers observe exactly one network refresh.
package auth

import (
	"sync"

	"golang.org/x/oauth2"
)

// Store holds the current access/refresh credential pair and expiry.
//
// No validation, no I/O. Writes come from the Custodian after a refresh or
// from the session layer on sign-in/sign-out.
type Store struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

// NewStore creates an empty credential store.
func NewStore() *Store {
	return &Store{}
}

// Get returns a copy of the current credential pair, or nil when signed out.
func (s *Store) Get() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil
	}
	copied := *s.token
	return &copied
}

// Set replaces the credential pair. A nil token signs the store out.
func (s *Store) Set(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == nil {
		s.token = nil
		return
	}
	copied := *token
	s.token = &copied
}

// Clear removes both tokens.
func (s *Store) Clear() {
	s.Set(nil)
}
