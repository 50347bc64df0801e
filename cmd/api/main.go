package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"archie-core-shopee-layer/internal/application"
	"archie-core-shopee-layer/internal/config"
	"archie-core-shopee-layer/internal/domain"
	apiinfra "archie-core-shopee-layer/internal/infrastructure/api"
	"archie-core-shopee-layer/internal/infrastructure/encryption"
	"archie-core-shopee-layer/internal/infrastructure/lock"
	"archie-core-shopee-layer/internal/infrastructure/metrics"
	"archie-core-shopee-layer/internal/infrastructure/repository"
	shopeeinfra "archie-core-shopee-layer/internal/infrastructure/shopee"
	"archie-core-shopee-layer/internal/ports"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		logger = logger.Level(level)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.Mongo.Database)

	// Initialize infrastructure (implementations)
	encryptionService, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewMetrics(registry)

	// Initialize repositories
	integrationRepo := repository.NewMongoIntegrationRepository(db)
	appRepo := repository.NewMongoMarketplaceAppRepository(db)
	rawRepo := repository.NewMongoRawRecordRepository(db)
	presentedRepo := repository.NewMongoPresentedRecordRepository(db)

	indexCtx, cancelIndexes := context.WithTimeout(ctx, 30*time.Second)
	if err := rawRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure raw record indexes")
	}
	if err := presentedRepo.EnsureIndexes(indexCtx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure presented record indexes")
	}
	cancelIndexes()

	// Sync lock: Redis when configured, in-process otherwise
	var syncLock ports.SyncLock
	if cfg.Redis.Addr != "" {
		redisLock, err := lock.NewRedisSyncLock(lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisLock.Close()
		syncLock = redisLock
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis sync lock")
	} else {
		syncLock = lock.NewMemorySyncLock()
		logger.Info().Msg("REDIS_ADDR not set, using in-memory sync lock")
	}

	// Initialize application services
	credentialsService := application.NewCredentialsService(
		integrationRepo,
		appRepo,
		encryptionService,
		domain.AppKeys{PartnerID: cfg.Shopee.PartnerID, PartnerKey: cfg.Shopee.PartnerKey},
		logger,
	)

	integrationService := application.NewIntegrationService(
		integrationRepo,
		logger,
	)

	// Initialize token manager, rate limiter and client pool for the Shopee API
	tokenManager := shopeeinfra.NewTokenManager(credentialsService, syncMetrics, logger)
	rateLimiter := shopeeinfra.NewRateLimiter(cfg.Shopee.RateLimitPerSecond, logger)
	shopeePool := shopeeinfra.NewClientPoolWithOptions(
		shopeeinfra.ClientConfig{
			Hosts:              cfg.Shopee.Hosts,
			Timeout:            cfg.Shopee.Timeout,
			RateLimitPerSecond: cfg.Shopee.RateLimitPerSecond,
		},
		tokenManager,
		rateLimiter,
		shopeeinfra.DefaultRetryConfig(),
		syncMetrics,
		logger,
	)
	clientPool := ports.MarketplaceClientPoolFunc(func(keys domain.AppKeys) (ports.MarketplaceClient, error) {
		client, err := shopeePool.GetClient(keys)
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	syncService := application.NewSyncService(
		credentialsService,
		integrationService,
		clientPool,
		syncLock,
		application.NewPersister(rawRepo, presentedRepo, syncMetrics, logger),
		application.SyncConfig{
			Limits:      domain.SyncLimits{MaxWindow: cfg.Sync.MaxWindow},
			BatchSize:   cfg.Sync.BatchSize,
			MaxPages:    cfg.Sync.MaxPages,
			Concurrency: cfg.Sync.Concurrency,
			LockTTL:     cfg.Sync.LockTTL,
		},
		syncMetrics,
		logger,
	)

	router := apiinfra.NewRouter(
		apiinfra.NewSyncHandler(syncService, logger),
		apiinfra.RouterConfig{
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			SwaggerFile:    "./docs/swagger.json",
		},
		logger,
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Failed to shut down server")
		}
	}()

	logger.Info().Str("port", cfg.Port).Str("env", cfg.Environment).Msg("Starting API server")
	logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}
