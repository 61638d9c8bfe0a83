package main

import (
	"context"
	"fmt"

	referralapp "github.com/KRDOldAccount/UnitFiveProject/internal/application/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/cache"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/config"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/logger"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/persistence"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/KRDOldAccount/UnitFiveProject"

// app holds the wired referral service and everything that must be shut down with it
type app struct {
	service *referralapp.ReferralService
	closers []func(context.Context) error
	log     *zap.Logger
}

// newApp wires configuration into the referral service
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{log: log}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.closers = append(a.closers, tel.Shutdown)

	metrics, err := telemetry.NewReferralMetrics(tel.Meter(instrumentationName))
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to create referral metrics: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	referralCache, err := cache.NewReferralCacheFactory(cfg.Redis,
		cache.WithFactoryLogger(log),
		cache.WithInMemoryFallback(cfg.Cache.AllowInMemoryFallback),
	).CreateCache()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if rc, ok := referralCache.(*cache.RedisReferralCache); ok {
		a.closers = append(a.closers, func(context.Context) error { return rc.Close() })
	}

	store := cache.NewCachingEdgeStore(
		persistence.NewGormReferralRepository(db.DB),
		referralCache,
		cache.WithLogger(log),
		cache.WithMetrics(metrics),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithBreaker(cfg.Cache.BreakerFailures, cfg.Cache.BreakerCooldown),
	)

	graph := referralapp.NewGraphAccessor(store)
	weights := referral.BonusWeights{
		FirstLevel:  decimal.NewFromFloat(cfg.Bonus.FirstLevel),
		SecondLevel: decimal.NewFromFloat(cfg.Bonus.SecondLevel),
		ThirdLevel:  decimal.NewFromFloat(cfg.Bonus.ThirdLevel),
	}
	engine := referralapp.NewLeaderboardEngine(graph, store,
		referralapp.WithLeaderboardSize(cfg.Leaderboard.Size),
		referralapp.WithParallel(cfg.Leaderboard.Parallel, cfg.Leaderboard.Workers),
		referralapp.WithTimeout(cfg.Leaderboard.Timeout),
		referralapp.WithEngineLogger(log),
		referralapp.WithEngineMetrics(metrics),
		referralapp.WithTracer(tel.Tracer(instrumentationName)),
	)

	a.service = referralapp.NewReferralService(store,
		referralapp.NewTierAggregator(graph, weights),
		engine,
		referralapp.WithServiceLogger(log),
		referralapp.WithDirectory(persistence.NewGormCustomerDirectory(db.DB)),
	)
	return a, nil
}

// close releases resources in reverse order of acquisition
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Error("Error during shutdown", zap.Error(err))
		}
	}
	a.closers = nil
}
