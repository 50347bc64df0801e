package domain

import (
	"sync"
	"time"
)

// AuthState is the token lifecycle state of an AuthContext
type AuthState int

const (
	// AuthValid means the access token may be used for signed calls
	AuthValid AuthState = iota
	// AuthInvalid means refresh failed or was impossible; no further calls should be made
	AuthInvalid
)

// AuthContext holds the mutable access/refresh token pair of one integration for one sync run.
// It is shared by every call of the run and is the only writer-guarded resource of the engine.
type AuthContext struct {
	IntegrationID string
	ShopID        string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	generation   uint64
	state        AuthState
}

// NewAuthContext creates an auth context with the tokens loaded from the credential store
func NewAuthContext(integrationID, shopID, accessToken, refreshToken string, expiresAt time.Time) *AuthContext {
	return &AuthContext{
		IntegrationID: integrationID,
		ShopID:        shopID,
		accessToken:   accessToken,
		refreshToken:  refreshToken,
		expiresAt:     expiresAt,
	}
}

// Current returns the access token together with its generation.
// The generation is passed back to the token manager when the token is rejected.
func (a *AuthContext) Current() (string, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.accessToken, a.generation
}

// RefreshToken returns the current refresh token
func (a *AuthContext) RefreshToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.refreshToken
}

// Generation returns how many times the pair has been rotated in this run
func (a *AuthContext) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// ExpiresAt returns the access token expiry, zero when unknown
func (a *AuthContext) ExpiresAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.expiresAt
}

// NeedsPriming reports whether the access token is missing or already expired
func (a *AuthContext) NeedsPriming(now time.Time) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.accessToken == "" {
		return true
	}
	return !a.expiresAt.IsZero() && !now.Before(a.expiresAt)
}

// IsValid reports whether the context is still usable
func (a *AuthContext) IsValid() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state == AuthValid
}

// Rotate installs a freshly issued token pair and bumps the generation
func (a *AuthContext) Rotate(accessToken, refreshToken string, expiresAt time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = accessToken
	if refreshToken != "" {
		a.refreshToken = refreshToken
	}
	a.expiresAt = expiresAt
	a.generation++
	a.state = AuthValid
}

// Invalidate moves the context to the terminal invalid state
func (a *AuthContext) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = AuthInvalid
}
