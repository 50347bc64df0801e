package application

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/ports"

	"github.com/rs/zerolog"
)

// CredentialsService handles marketplace credentials: integration token pairs and partner app keys.
// Tokens are decrypted on read and encrypted on write; nothing is ever deleted here.
type CredentialsService struct {
	integrationRepo ports.IntegrationRepository
	appRepo         ports.MarketplaceAppRepository
	encryptionSvc   ports.EncryptionService
	fallbackKeys    domain.AppKeys
	logger          zerolog.Logger
}

// NewCredentialsService creates a new credentials service.
// fallbackKeys are the global partner keys used when no application is stored.
func NewCredentialsService(
	integrationRepo ports.IntegrationRepository,
	appRepo ports.MarketplaceAppRepository,
	encryptionService ports.EncryptionService,
	fallbackKeys domain.AppKeys,
	logger zerolog.Logger,
) *CredentialsService {
	return &CredentialsService{
		integrationRepo: integrationRepo,
		appRepo:         appRepo,
		encryptionSvc:   encryptionService,
		fallbackKeys:    fallbackKeys,
		logger:          logger,
	}
}

// LoadAuth decrypts the stored token pair of an integration into a fresh AuthContext
func (s *CredentialsService) LoadAuth(ctx context.Context, integration *domain.IntegrationCredential) (*domain.AuthContext, error) {
	accessToken, err := s.decryptOptional(integration.EncryptedAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := s.decryptOptional(integration.EncryptedRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	var expiresAt time.Time
	if integration.TokenExpiresAt != nil {
		expiresAt = *integration.TokenExpiresAt
	}

	return domain.NewAuthContext(integration.ID, integration.ShopID, accessToken, refreshToken, expiresAt), nil
}

func (s *CredentialsService) decryptOptional(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return s.encryptionSvc.Decrypt(value)
}

// SaveRotatedTokens encrypts and persists a rotated token pair
func (s *CredentialsService) SaveRotatedTokens(ctx context.Context, integrationID, accessToken, refreshToken string, expiresAt time.Time) error {
	encryptedAccess, err := s.encryptionSvc.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encryptedRefresh, err := s.encryptionSvc.Encrypt(refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	if err := s.integrationRepo.UpdateTokens(ctx, integrationID, encryptedAccess, encryptedRefresh, expiresAt); err != nil {
		return err
	}

	s.logger.Info().Str("integration_id", integrationID).Time("expires_at", expiresAt).Msg("Rotated tokens saved")
	return nil
}

// ResolveAppKeys returns the partner keys of a marketplace.
// The stored application wins; the global keys are the fallback.
func (s *CredentialsService) ResolveAppKeys(ctx context.Context, marketplace string) (domain.AppKeys, error) {
	app, err := s.appRepo.GetByMarketplace(ctx, marketplace)
	if err != nil {
		s.logger.Warn().Err(err).Str("marketplace", marketplace).Msg("Failed to load marketplace app, using global keys")
	}

	if app != nil && app.PartnerID > 0 && app.EncryptedPartnerKey != "" {
		partnerKey, err := s.encryptionSvc.Decrypt(app.EncryptedPartnerKey)
		if err != nil {
			s.logger.Warn().Err(err).Str("marketplace", marketplace).Msg("Failed to decrypt partner key, using global keys")
		} else {
			return domain.AppKeys{PartnerID: app.PartnerID, PartnerKey: partnerKey}, nil
		}
	}

	if s.fallbackKeys.Valid() {
		return s.fallbackKeys, nil
	}
	return domain.AppKeys{}, fmt.Errorf("%w: %s partner id and key are not configured", domain.ErrConfiguration, marketplace)
}
