package shopee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// maxRotationsPerRun bounds successful refreshes of one AuthContext.
// A token rejected right after it was issued will not be fixed by another refresh.
const maxRotationsPerRun = 1

// TokenStore persists rotated token pairs
type TokenStore interface {
	SaveRotatedTokens(ctx context.Context, integrationID, accessToken, refreshToken string, expiresAt time.Time) error
}

// RefreshFunc exchanges a refresh token for a new token pair
type RefreshFunc func(ctx context.Context, refreshToken, shopID string) (*TokenGrant, error)

// TokenManager manages Shopee access tokens for the duration of a sync run.
// Concurrent refreshes of the same integration collapse into one upstream call.
type TokenManager struct {
	store   TokenStore
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(store TokenStore, m *metrics.Metrics, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Prime refreshes the token pair upfront when the access token is missing or expired
func (tm *TokenManager) Prime(ctx context.Context, auth *domain.AuthContext, refresh RefreshFunc) error {
	if !auth.IsValid() {
		return domain.ErrAuthAbandoned
	}
	// without a refresh token the stored access token is tried as is
	if !auth.NeedsPriming(tm.now()) || auth.RefreshToken() == "" {
		return nil
	}
	tm.logger.Info().
		Str("integration_id", auth.IntegrationID).
		Str("shop_id", auth.ShopID).
		Msg("Access token missing or expired, refreshing before sync")
	return tm.Refresh(ctx, auth, auth.Generation(), refresh)
}

// Refresh replaces the token pair observed at staleGen.
// If another caller already rotated the pair, it returns immediately so the caller retries with the new token.
// On failure the context is invalidated and ErrAuthAbandoned is returned.
func (tm *TokenManager) Refresh(ctx context.Context, auth *domain.AuthContext, staleGen uint64, refresh RefreshFunc) error {
	if !auth.IsValid() {
		return domain.ErrAuthAbandoned
	}
	if auth.Generation() != staleGen {
		return nil
	}

	_, err, shared := tm.group.Do(auth.IntegrationID, func() (interface{}, error) {
		// re-check under the flight: a previous flight may have finished between the checks above
		if !auth.IsValid() {
			return nil, domain.ErrAuthAbandoned
		}
		if auth.Generation() != staleGen {
			return nil, nil
		}
		return nil, tm.rotate(ctx, auth, refresh)
	})
	if shared {
		tm.logger.Debug().
			Str("integration_id", auth.IntegrationID).
			Msg("Joined in-flight token refresh")
	}
	return err
}

func (tm *TokenManager) rotate(ctx context.Context, auth *domain.AuthContext, refresh RefreshFunc) error {
	if auth.Generation() >= maxRotationsPerRun {
		auth.Invalidate()
		tm.metrics.ObserveTokenRefresh("rejected_after_rotation")
		tm.logger.Warn().
			Str("integration_id", auth.IntegrationID).
			Msg("Freshly issued access token rejected, abandoning integration")
		return fmt.Errorf("%w: token rejected after rotation", domain.ErrAuthAbandoned)
	}

	refreshToken := auth.RefreshToken()
	if refreshToken == "" {
		auth.Invalidate()
		tm.metrics.ObserveTokenRefresh("missing_refresh_token")
		return fmt.Errorf("%w: %w", domain.ErrAuthAbandoned, ErrMissingRefreshToken)
	}

	grant, err := refresh(ctx, refreshToken, auth.ShopID)
	if err == nil && (grant == nil || grant.AccessToken == "") {
		err = ErrRefreshFailed
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			tm.metrics.ObserveTokenRefresh("canceled")
			return err
		}
		auth.Invalidate()
		tm.metrics.ObserveTokenRefresh("failure")
		tm.logger.Error().
			Err(err).
			Str("integration_id", auth.IntegrationID).
			Str("shop_id", auth.ShopID).
			Msg("Token refresh failed")
		return fmt.Errorf("%w: %w", domain.ErrAuthAbandoned, err)
	}

	auth.Rotate(grant.AccessToken, grant.RefreshToken, grant.ExpiresAt)
	tm.metrics.ObserveTokenRefresh("success")
	tm.logger.Info().
		Str("integration_id", auth.IntegrationID).
		Time("expires_at", grant.ExpiresAt).
		Msg("Access token refreshed")

	// the new pair is already live for this run; a failed write only costs a refresh next run
	if tm.store != nil {
		if err := tm.store.SaveRotatedTokens(ctx, auth.IntegrationID, grant.AccessToken, auth.RefreshToken(), grant.ExpiresAt); err != nil {
			tm.logger.Error().
				Err(err).
				Str("integration_id", auth.IntegrationID).
				Msg("Failed to persist rotated tokens")
		}
	}
	return nil
}
