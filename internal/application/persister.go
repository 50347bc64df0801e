package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/metrics"
	"archie-core-shopee-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Persister writes enriched entities: raw upsert first, then the presented view and the label patch
type Persister struct {
	rawRepo       ports.RawRecordRepository
	presentedRepo ports.PresentedRecordRepository
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

// NewPersister creates a new persister; presentedRepo may be nil
func NewPersister(
	rawRepo ports.RawRecordRepository,
	presentedRepo ports.PresentedRecordRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Persister {
	return &Persister{
		rawRepo:       rawRepo,
		presentedRepo: presentedRepo,
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// Persist writes every entity and returns how many raw upserts succeeded.
// Failures are logged per entity and never stop the rest of the batch.
func (p *Persister) Persist(ctx context.Context, integration *domain.IntegrationCredential, entities []*EnrichedEntity) int {
	updated := 0
	for _, e := range entities {
		if err := p.persistOne(ctx, integration, e); err != nil {
			p.logger.Error().
				Err(err).
				Str("integration_id", integration.ID).
				Str("external_id", e.ExternalID).
				Msg("Failed to persist entity")
			continue
		}
		updated++
	}
	if len(entities) > 0 {
		p.metrics.AddPersisted(string(entities[0].Kind), updated)
	}
	return updated
}

func (p *Persister) persistOne(ctx context.Context, integration *domain.IntegrationCredential, e *EnrichedEntity) error {
	payload, err := json.Marshal(e.Composite)
	if err != nil {
		return fmt.Errorf("failed to marshal composite: %w", err)
	}

	now := p.now()
	raw := &domain.RawEntityRecord{
		Key:           recordKey(integration, e.ExternalID),
		Kind:          e.Kind,
		CompanyID:     integration.CompanyID,
		IntegrationID: integration.ID,
		ShopID:        integration.ShopID,
		Payload:       payload,
		LastSyncedAt:  now,
	}
	if err := p.rawRepo.Upsert(ctx, raw); err != nil {
		return err
	}

	if p.presentedRepo == nil {
		return nil
	}
	if err := p.presentedRepo.Upsert(ctx, Present(e, integration, now)); err != nil {
		p.logger.Warn().
			Err(err).
			Str("integration_id", integration.ID).
			Str("external_id", e.ExternalID).
			Msg("Failed to update presented record")
		return nil
	}

	if e.Label != nil {
		if err := p.presentedRepo.PatchShippingLabel(ctx, e.Kind, raw.Key, e.Label); err != nil {
			p.logger.Warn().
				Err(err).
				Str("integration_id", integration.ID).
				Str("external_id", e.ExternalID).
				Msg("Failed to patch shipping label")
		}
	}
	return nil
}
