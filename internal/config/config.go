package config

import (
	"fmt"
	"strings"
	"time"

	"archie-core-shopee-layer/internal/domain"

	"github.com/spf13/viper"
)

// Config is the process configuration read from the environment (.env is loaded by main)
type Config struct {
	Environment string
	Port        string
	LogLevel    string
	Mongo       MongoConfig
	Redis       RedisConfig
	Shopee      ShopeeConfig
	Sync        SyncConfig

	EncryptionKey string
}

type MongoConfig struct {
	URI      string
	Database string
}

// RedisConfig enables the distributed sync lock when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ShopeeConfig struct {
	PartnerID          int64
	PartnerKey         string
	Hosts              []string
	Timeout            time.Duration
	RateLimitPerSecond float64
}

type SyncConfig struct {
	MaxWindow   time.Duration
	MaxPages    int
	BatchSize   int
	Concurrency int
	LockTTL     time.Duration
}

// Load reads the configuration and applies defaults; it does not validate
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("mongodb_uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb_database", "")
	v.SetDefault("encryption_key", "")
	v.SetDefault("shopee_partner_id", 0)
	v.SetDefault("shopee_partner_key", "")
	v.SetDefault("shopee_api_hosts", "https://partner.shopeemobile.com,https://openplatform.shopee.com.br")
	v.SetDefault("shopee_timeout_seconds", 30)
	v.SetDefault("shopee_rate_limit_per_second", 10.0)
	v.SetDefault("sync_max_window_days", 15)
	v.SetDefault("sync_max_pages", 100)
	v.SetDefault("sync_batch_size", domain.MaxDetailBatch)
	v.SetDefault("sync_concurrency", 1)
	v.SetDefault("sync_lock_ttl", "10m")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	lockTTL, err := time.ParseDuration(strings.TrimSpace(v.GetString("sync_lock_ttl")))
	if err != nil {
		return Config{}, fmt.Errorf("invalid SYNC_LOCK_TTL: %w", err)
	}

	windowDays := v.GetInt("sync_max_window_days")
	if windowDays <= 0 {
		windowDays = 15
	}

	batchSize := v.GetInt("sync_batch_size")
	if batchSize <= 0 || batchSize > domain.MaxDetailBatch {
		batchSize = domain.MaxDetailBatch
	}

	concurrency := v.GetInt("sync_concurrency")
	if concurrency <= 0 {
		concurrency = 1
	}

	maxPages := v.GetInt("sync_max_pages")
	if maxPages <= 0 {
		maxPages = 100
	}

	timeoutSeconds := v.GetInt("shopee_timeout_seconds")
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}

	cfg := Config{
		Environment: strings.TrimSpace(v.GetString("app_env")),
		Port:        strings.TrimSpace(v.GetString("port")),
		LogLevel:    strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(v.GetString("mongodb_uri")),
			Database: strings.TrimSpace(v.GetString("mongodb_database")),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis_addr")),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Shopee: ShopeeConfig{
			PartnerID:          v.GetInt64("shopee_partner_id"),
			PartnerKey:         strings.TrimSpace(v.GetString("shopee_partner_key")),
			Hosts:              splitList(v.GetString("shopee_api_hosts")),
			Timeout:            time.Duration(timeoutSeconds) * time.Second,
			RateLimitPerSecond: v.GetFloat64("shopee_rate_limit_per_second"),
		},
		Sync: SyncConfig{
			MaxWindow:   time.Duration(windowDays) * 24 * time.Hour,
			MaxPages:    maxPages,
			BatchSize:   batchSize,
			Concurrency: concurrency,
			LockTTL:     lockTTL,
		},
		EncryptionKey: v.GetString("encryption_key"),
	}
	return cfg, nil
}

// Validate reports the settings the process cannot start without
func (c Config) Validate() error {
	var missing []string
	if c.Mongo.Database == "" {
		missing = append(missing, "MONGODB_DATABASE")
	}
	if c.EncryptionKey == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(c.Shopee.Hosts) == 0 {
		return fmt.Errorf("SHOPEE_API_HOSTS must list at least one host")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
