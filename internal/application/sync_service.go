package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archie-core-shopee-layer/internal/domain"
	"archie-core-shopee-layer/internal/infrastructure/metrics"
	"archie-core-shopee-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SyncConfig holds the tunables of a sync pass
type SyncConfig struct {
	Limits      domain.SyncLimits
	BatchSize   int
	MaxPages    int
	Concurrency int
	LockTTL     time.Duration
}

// DefaultSyncConfig returns the defaults used when nothing is configured
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Limits:      domain.DefaultSyncLimits(),
		BatchSize:   domain.DefaultPageSize,
		MaxPages:    100,
		Concurrency: 1,
		LockTTL:     10 * time.Minute,
	}
}

// SyncService orchestrates one sync invocation across the selected integrations.
// Integrations run sequentially and a failure in one never aborts the others.
type SyncService struct {
	credentials  *CredentialsService
	integrations *IntegrationService
	clientPool   ports.MarketplaceClientPool
	lock         ports.SyncLock
	fetcher      *ListFetcher
	enricher     *Enricher
	persister    *Persister
	cfg          SyncConfig
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	now          func() time.Time
}

// NewSyncService creates a new sync service; lock may be nil to disable locking
func NewSyncService(
	credentials *CredentialsService,
	integrations *IntegrationService,
	clientPool ports.MarketplaceClientPool,
	lock ports.SyncLock,
	persister *Persister,
	cfg SyncConfig,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *SyncService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = domain.DefaultPageSize
	}
	if cfg.BatchSize > domain.MaxDetailBatch {
		cfg.BatchSize = domain.MaxDetailBatch
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultSyncConfig().LockTTL
	}
	return &SyncService{
		credentials:  credentials,
		integrations: integrations,
		clientPool:   clientPool,
		lock:         lock,
		fetcher:      NewListFetcher(cfg.MaxPages, logger),
		enricher:     NewEnricher(cfg.Concurrency, logger),
		persister:    persister,
		cfg:          cfg,
		metrics:      m,
		logger:       logger,
		now:          time.Now,
	}
}

// Run executes one sync invocation of the given kind.
// Configuration problems end the invocation with ok=false; everything else is reported per integration.
func (s *SyncService) Run(ctx context.Context, kind domain.EntityKind, req domain.SyncRequest) *domain.SyncResponse {
	start := s.now()
	correlationID := uuid.NewString()
	logger := s.logger.With().
		Str("correlationId", correlationID).
		Str("kind", string(kind)).
		Logger()

	fail := func(err error) *domain.SyncResponse {
		logger.Error().Err(err).Msg("Sync invocation failed")
		s.metrics.ObserveSync(string(kind), "failed", s.now().Sub(start))
		return &domain.SyncResponse{OK: false, Error: err.Error(), CorrelationID: correlationID}
	}

	if err := req.Normalize(kind, s.cfg.Limits, s.now()); err != nil {
		return fail(err)
	}

	keys, err := s.credentials.ResolveAppKeys(ctx, domain.MarketplaceShopee)
	if err != nil {
		return fail(err)
	}
	client, err := s.clientPool.GetClient(keys)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", domain.ErrConfiguration, err))
	}

	integrations, err := s.integrations.Resolve(ctx, domain.MarketplaceShopee, &req)
	if err != nil {
		return fail(err)
	}

	logger.Info().
		Str("organization_id", req.OrganizationID).
		Str("shop_id", req.ShopID).
		Int("integrations", len(integrations)).
		Int("explicit_ids", len(req.IDs)).
		Time("time_from", req.TimeFrom).
		Time("time_to", req.TimeTo).
		Msg("Sync started")

	resp := &domain.SyncResponse{OK: true, CorrelationID: correlationID}
	for _, integration := range integrations {
		ilog := logger.With().
			Str("integration_id", integration.ID).
			Str("shop_id", integration.ShopID).
			Logger()
		result := s.syncIntegration(ctx, ilog, client, kind, &req, integration)
		resp.Results = append(resp.Results, result)
	}

	logger.Info().
		Dur("duration", s.now().Sub(start)).
		Msg("Sync finished")
	s.metrics.ObserveSync(string(kind), "ok", s.now().Sub(start))
	return resp
}

func (s *SyncService) syncIntegration(
	ctx context.Context,
	logger zerolog.Logger,
	client ports.MarketplaceClient,
	kind domain.EntityKind,
	req *domain.SyncRequest,
	integration *domain.IntegrationCredential,
) domain.SyncResult {
	result := domain.SyncResult{IntegrationID: integration.ID, ShopID: integration.ShopID}

	if s.lock != nil {
		lockKey := integration.ID + ":" + string(kind)
		acquired, err := s.lock.Acquire(ctx, lockKey, s.cfg.LockTTL)
		if err != nil {
			result.Error = fmt.Sprintf("failed to acquire sync lock: %v", err)
			logger.Error().Err(err).Msg("Failed to acquire sync lock")
			return result
		}
		if !acquired {
			result.Error = domain.ErrSyncInProgress.Error()
			logger.Warn().Msg("Sync already running for integration, skipping")
			return result
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), lockKey); err != nil {
				logger.Warn().Err(err).Msg("Failed to release sync lock")
			}
		}()
	}

	auth, err := s.credentials.LoadAuth(ctx, integration)
	if err != nil {
		result.Error = err.Error()
		logger.Error().Err(err).Msg("Failed to load integration credentials")
		return result
	}
	if err := client.Prime(ctx, auth); err != nil {
		result.Error = err.Error()
		logger.Error().Err(err).Msg("Failed to prime access token, abandoning integration")
		return result
	}

	listing, err := s.fetcher.Collect(ctx, client, auth, kind, req)
	if err != nil {
		result.Error = err.Error()
		logger.Error().Err(err).Msg("Listing abandoned")
		return result
	}
	if listing.Err != nil {
		result.Error = listing.Err.Error()
	}
	result.Fetched = len(listing.IDs)
	s.metrics.AddFetched(string(kind), result.Fetched)

	for i, batch := range domain.Chunk(listing.IDs, s.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			break
		}

		entities, err := s.enricher.Enrich(ctx, client, auth, kind, batch, listing.Entries)
		result.Updated += s.persister.Persist(ctx, integration, entities)

		if err != nil {
			if errors.Is(err, domain.ErrAuthAbandoned) || ctx.Err() != nil {
				result.Error = err.Error()
				logger.Error().Err(err).Int("batch", i+1).Msg("Integration abandoned")
				break
			}
			logger.Warn().Err(err).Int("batch", i+1).Int("size", len(batch)).Msg("Batch skipped")
			continue
		}
	}

	logger.Info().
		Int("fetched", result.Fetched).
		Int("updated", result.Updated).
		Msg("Integration synced")
	return result
}
