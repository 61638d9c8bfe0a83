package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys used by referral metrics
var (
	AttrCacheOp = attribute.Key("cache.operation")
	AttrOutcome = attribute.Key("outcome")
)

// leaderboardBuckets are histogram boundaries in seconds for whole-forest computations
var leaderboardBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// ReferralMetrics records cache and leaderboard activity.
// A nil *ReferralMetrics is valid and records nothing.
type ReferralMetrics struct {
	cacheHits           metric.Int64Counter
	cacheMisses         metric.Int64Counter
	cacheDegraded       metric.Int64Counter
	cacheInvalidations  metric.Int64Counter
	referralsAdded      metric.Int64Counter
	leaderboardDuration metric.Float64Histogram
}

type counterSpec struct {
	dst         *metric.Int64Counter
	name        string
	description string
	unit        string
}

// NewReferralMetrics creates the referral instruments on meter.
func NewReferralMetrics(meter metric.Meter) (*ReferralMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReferralMetrics{}
	counters := []counterSpec{
		{&m.cacheHits, "referral_cache_hits_total", "Referral list reads served from cache", "{reads}"},
		{&m.cacheMisses, "referral_cache_misses_total", "Referral list reads that went to the store", "{reads}"},
		{&m.cacheDegraded, "referral_cache_degraded_total", "Cache operations skipped because the cache was unavailable", "{operations}"},
		{&m.cacheInvalidations, "referral_cache_invalidations_total", "Cache entries invalidated by writes", "{entries}"},
		{&m.referralsAdded, "referral_added_total", "Referral edges committed", "{referrals}"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.description), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	h, err := meter.Float64Histogram("referral_leaderboard_duration_seconds",
		metric.WithDescription("Leaderboard computation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(leaderboardBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create leaderboard histogram: %w", err)
	}
	m.leaderboardDuration = h
	return m, nil
}

// RecordCacheHit records a read served from cache.
func (m *ReferralMetrics) RecordCacheHit(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheHits.Add(ctx, 1)
}

// RecordCacheMiss records a read that had to query the store.
func (m *ReferralMetrics) RecordCacheMiss(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheMisses.Add(ctx, 1)
}

// RecordCacheDegraded records a cache operation skipped or failed; op is get, set or delete.
func (m *ReferralMetrics) RecordCacheDegraded(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.cacheDegraded.Add(ctx, 1, metric.WithAttributes(AttrCacheOp.String(op)))
}

// RecordInvalidation records a cache entry invalidated by a write.
func (m *ReferralMetrics) RecordInvalidation(ctx context.Context) {
	if m == nil {
		return
	}
	m.cacheInvalidations.Add(ctx, 1)
}

// RecordReferralAdded records a committed referral edge.
func (m *ReferralMetrics) RecordReferralAdded(ctx context.Context) {
	if m == nil {
		return
	}
	m.referralsAdded.Add(ctx, 1)
}

// RecordLeaderboard records the duration of a leaderboard computation and whether it succeeded.
func (m *ReferralMetrics) RecordLeaderboard(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.leaderboardDuration.Record(ctx, d.Seconds(), metric.WithAttributes(AttrOutcome.String(outcome)))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewReferralMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
