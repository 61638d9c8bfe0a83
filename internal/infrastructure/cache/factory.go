package cache

import (
	"fmt"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ReferralCacheFactory creates referral caches based on configuration
type ReferralCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	cleanupInterval       time.Duration
}

// ReferralCacheFactoryOption is a functional option for configuring the factory
type ReferralCacheFactoryOption func(*ReferralCacheFactory)

// WithFactoryLogger sets the logger for the factory
func WithFactoryLogger(logger *zap.Logger) ReferralCacheFactoryOption {
	return func(f *ReferralCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory cache when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) ReferralCacheFactoryOption {
	return func(f *ReferralCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithCleanupInterval sets how often the in-memory cache sweeps expired entries
func WithCleanupInterval(d time.Duration) ReferralCacheFactoryOption {
	return func(f *ReferralCacheFactory) {
		f.cleanupInterval = d
	}
}

// NewReferralCacheFactory creates a new factory
func NewReferralCacheFactory(cfg config.RedisConfig, opts ...ReferralCacheFactoryOption) *ReferralCacheFactory {
	f := &ReferralCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		cleanupInterval:       10 * time.Minute,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-backed referral cache
func (f *ReferralCacheFactory) CreateRedisCache() (*RedisReferralCache, error) {
	c, err := NewRedisReferralCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis referral cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates a process-local referral cache.
// WARNING: entries are not shared across instances, so a write on one
// instance does not invalidate another instance's cached lists.
func (f *ReferralCacheFactory) CreateInMemoryCache() *InMemoryReferralCache {
	return NewInMemoryReferralCache(f.cleanupInterval)
}

// CreateCache tries Redis first and falls back to in-memory when allowed
func (f *ReferralCacheFactory) CreateCache() (referral.ReferralCache, error) {
	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis referral cache", zap.String("addr", f.redisConfig.Addr()))
		return c, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for referral cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory referral cache. "+
		"Writes on other instances will not invalidate this instance's entries.",
		zap.Error(err),
	)
	return f.CreateInMemoryCache(), nil
}
