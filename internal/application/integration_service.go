package application

import (
	"context"
	"fmt"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/ports"

	"github.com/rs/zerolog"
)

// IntegrationService resolves which integrations a sync request targets
type IntegrationService struct {
	integrationRepo ports.IntegrationRepository
	logger          zerolog.Logger
}

// NewIntegrationService creates a new integration service
func NewIntegrationService(
	integrationRepo ports.IntegrationRepository,
	logger zerolog.Logger,
) *IntegrationService {
	return &IntegrationService{
		integrationRepo: integrationRepo,
		logger:          logger,
	}
}

// Resolve returns the marketplace integrations selected by the request.
// An organization selects all its integrations, narrowed to shop_id when both are given.
func (s *IntegrationService) Resolve(ctx context.Context, marketplace string, req *domain.SyncRequest) ([]*domain.IntegrationCredential, error) {
	var (
		integrations []*domain.IntegrationCredential
		err          error
	)
	if req.OrganizationID != "" {
		integrations, err = s.integrationRepo.ListByTenant(ctx, req.OrganizationID, marketplace)
	} else {
		integrations, err = s.integrationRepo.ListByShopID(ctx, req.ShopID, marketplace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve integrations: %w", err)
	}

	if req.OrganizationID != "" && req.ShopID != "" {
		filtered := integrations[:0]
		for _, integration := range integrations {
			if integration.ShopID == req.ShopID {
				filtered = append(filtered, integration)
			}
		}
		integrations = filtered
	}

	if len(integrations) == 0 {
		return nil, domain.ErrNoIntegrations
	}

	s.logger.Debug().
		Str("organization_id", req.OrganizationID).
		Str("shop_id", req.ShopID).
		Int("count", len(integrations)).
		Msg("Resolved integrations")
	return integrations, nil
}
