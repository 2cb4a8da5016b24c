package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/scout/internal/shared"
	"golang.org/x/oauth2"
)

// RefreshFunc exchanges a refresh token for a new credential pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

// refreshResult is the shared outcome of one refresh cycle.
type refreshResult struct {
	token *oauth2.Token
	err   error
}

// Custodian guarantees single-flight refresh of the credential pair.
//
// Callers that arrive while a refresh is in flight join a wait queue and all
// observe the outcome of the one network call. On failure the store is
// cleared and the session-end hook fires exactly once per failed refresh.
type Custodian struct {
	mu       sync.Mutex
	store    *Store
	refresh  RefreshFunc
	waiters  []chan refreshResult
	inFlight bool

	onRefresh    func(*oauth2.Token)
	onSessionEnd func()
	logger       *log.Logger
}

// NewCustodian creates a Custodian over the given store and refresh call.
func NewCustodian(store *Store, refresh RefreshFunc, logger *log.Logger) *Custodian {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Custodian{
		store:   store,
		refresh: refresh,
		logger:  logger,
	}
}

// SetOnRefresh registers the fire-and-forget callback invoked with the new
// pair after every successful refresh, so a session layer can persist it.
func (c *Custodian) SetOnRefresh(fn func(*oauth2.Token)) {
	c.onRefresh = fn
}

// SetOnSessionEnd registers the callback invoked when the session must end
// (refresh failed or no refresh token remains).
func (c *Custodian) SetOnSessionEnd(fn func()) {
	c.onSessionEnd = fn
}

// EnsureFresh returns the current credential when it is still valid,
// otherwise joins (or starts) a refresh and waits for its outcome.
func (c *Custodian) EnsureFresh(ctx context.Context) (*oauth2.Token, error) {
	return c.ensure(ctx, false)
}

// Refresh forces a refresh cycle even if the current credential looks valid.
// A refresh already in flight is joined rather than duplicated.
func (c *Custodian) Refresh(ctx context.Context) (*oauth2.Token, error) {
	return c.ensure(ctx, true)
}

func (c *Custodian) ensure(ctx context.Context, force bool) (*oauth2.Token, error) {
	c.mu.Lock()

	if !c.inFlight {
		token := c.store.Get()
		if token == nil || token.RefreshToken == "" {
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, shared.ErrNoRefreshToken)
		}
		if !force && token.Valid() {
			c.mu.Unlock()
			return token, nil
		}

		c.inFlight = true
		// The refresh outlives the initiating caller: waiters queued behind it
		// must still get an outcome if that caller's context is cancelled.
		go c.run(token.RefreshToken)
	}

	ch := make(chan refreshResult, 1)
	c.waiters = append(c.waiters, ch)
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.token, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run performs the one network refresh for the current cycle and broadcasts
// its outcome to every queued waiter.
//
// The store is updated (or cleared) before inFlight is released: a caller
// entering ensure right after the cycle settles must see the outcome, never
// the consumed pair, or it would start a second refresh with a dead token.
func (c *Custodian) run(refreshToken string) {
	token, err := c.refresh(context.Background(), refreshToken)

	c.mu.Lock()
	if err != nil {
		c.store.Clear()
	} else {
		c.store.Set(token)
	}
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("token refresh failed, ending session", "error", err)
		if c.onSessionEnd != nil {
			c.onSessionEnd()
		}
		wrapped := fmt.Errorf("%w: %v", shared.ErrAuthExpired, err)
		for _, ch := range waiters {
			ch <- refreshResult{err: wrapped}
		}
		return
	}

	c.logger.Debug("credential pair refreshed", "expires", token.Expiry)

	if c.onRefresh != nil {
		copied := *token
		go c.onRefresh(&copied)
	}

	for _, ch := range waiters {
		copied := *token
		ch <- refreshResult{token: &copied}
	}
}

// EndSession clears the credential pair and fires the session-end hook.
//
// Called on refresh failure and by the client when a 401 arrives with no
// refresh token to fall back on.
func (c *Custodian) EndSession() {
	c.store.Clear()
	if c.onSessionEnd != nil {
		c.onSessionEnd()
	}
}
