package cache

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/logger"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/telemetry"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultReferralTTL is how long a cached referral list lives
const DefaultReferralTTL = 3600 * time.Second

// DefaultLoadTimeout bounds a shared store load once it no longer follows any caller's context
const DefaultLoadTimeout = 30 * time.Second

const lockStripes = 64

// keyStripe guards the generation and dirty state of the keys hashed to it.
// A key's generation is bumped on every invalidation; a read-miss only
// populates the cache if the generation it started with is still current.
type keyStripe struct {
	mu          sync.Mutex
	generations map[string]uint64
	dirty       map[string]struct{} // invalidations that could not reach the cache
}

// CachingEdgeStore is a cache-aside layer over a referral.EdgeStore.
// Reads of a referrer's direct referrals go through the cache and populate it
// on a miss. Writes go to the store and then invalidate the referrer's entry.
// Any cache failure degrades to store reads; store failures are returned unchanged.
type CachingEdgeStore struct {
	store   referral.EdgeStore
	cache   referral.ReferralCache
	ttl     time.Duration
	loadTTL time.Duration
	logger  *zap.Logger
	metrics *telemetry.ReferralMetrics

	breakerFailures uint32
	breakerCooldown time.Duration
	breaker         *gobreaker.CircuitBreaker

	loads   singleflight.Group
	stripes [lockStripes]keyStripe
}

// CachingEdgeStoreOption is a functional option for configuring the store
type CachingEdgeStoreOption func(*CachingEdgeStore)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) CachingEdgeStoreOption {
	return func(s *CachingEdgeStore) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *telemetry.ReferralMetrics) CachingEdgeStoreOption {
	return func(s *CachingEdgeStore) {
		s.metrics = m
	}
}

// WithTTL sets the lifetime of cached referral lists
func WithTTL(ttl time.Duration) CachingEdgeStoreOption {
	return func(s *CachingEdgeStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLoadTimeout bounds how long a shared store load may run
func WithLoadTimeout(timeout time.Duration) CachingEdgeStoreOption {
	return func(s *CachingEdgeStore) {
		if timeout > 0 {
			s.loadTTL = timeout
		}
	}
}

// WithBreaker sets how many consecutive cache failures open the breaker and
// how long the cache is then bypassed before it is probed again.
func WithBreaker(failures uint32, cooldown time.Duration) CachingEdgeStoreOption {
	return func(s *CachingEdgeStore) {
		if failures > 0 {
			s.breakerFailures = failures
		}
		if cooldown > 0 {
			s.breakerCooldown = cooldown
		}
	}
}

// NewCachingEdgeStore creates a cache-aside store over store and cache
func NewCachingEdgeStore(store referral.EdgeStore, cache referral.ReferralCache, opts ...CachingEdgeStoreOption) *CachingEdgeStore {
	s := &CachingEdgeStore{
		store:           store,
		cache:           cache,
		ttl:             DefaultReferralTTL,
		loadTTL:         DefaultLoadTimeout,
		logger:          zap.NewNop(),
		breakerFailures: 5,
		breakerCooldown: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.stripes {
		s.stripes[i].generations = make(map[string]uint64)
		s.stripes[i].dirty = make(map[string]struct{})
	}

	failures := s.breakerFailures
	log := s.logger
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "referral-cache",
		MaxRequests: 1,
		Timeout:     s.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// The caller giving up or running out of time says nothing about the cache's health
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// GetDirectReferrals returns the edges whose referrer is referrerID.
// The result is never nil; a referrer with no referrals yields an empty slice,
// and that empty list is cached like any other.
func (s *CachingEdgeStore) GetDirectReferrals(ctx context.Context, referrerID string) ([]referral.Referral, error) {
	log := logger.Ctx(ctx, s.logger)
	key := referral.CacheKey(referrerID)

	edges, hit, cacheUsable := s.readCached(ctx, key)
	if hit {
		log.Debug("referral cache hit", zap.String("key", key), zap.Int("count", len(edges)))
		s.metrics.RecordCacheHit(ctx)
		return edges, nil
	}
	log.Debug("referral cache miss", zap.String("key", key))
	s.metrics.RecordCacheMiss(ctx)

	st := s.stripe(key)
	gen := st.generation(key)

	// Loads are shared per generation, so a read that starts after an
	// invalidation never joins a load that began before it. The load is
	// detached from the caller that started it; each caller stops waiting
	// when its own context ends.
	ch := s.loads.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTTL)
		defer cancel()

		loaded, err := s.store.FindByReferrerID(loadCtx, referrerID)
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			loaded = []referral.Referral{}
		}
		if cacheUsable {
			s.populate(loadCtx, st, key, gen, loaded)
		}
		return loaded, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		log.Error("failed to load referrals", zap.String("referrer_id", referrerID), zap.Error(res.Err))
		return nil, res.Err
	}

	// The loaded slice is shared by every caller of the same load
	loaded := res.Val.([]referral.Referral)
	out := make([]referral.Referral, len(loaded))
	copy(out, loaded)
	return out, nil
}

// AddReferral persists edge and invalidates exactly the cached list of its referrer.
// The new customer's own entry is left alone: its direct referrals did not change.
// A failed invalidation is logged and does not fail the write.
func (s *CachingEdgeStore) AddReferral(ctx context.Context, edge *referral.Referral) (*referral.Referral, error) {
	if edge == nil || strings.TrimSpace(edge.CustomerID) == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Request must contain a valid customer ID")
	}

	if err := s.store.Insert(ctx, edge); err != nil {
		return nil, err
	}
	s.metrics.RecordReferralAdded(ctx)

	s.invalidate(ctx, referral.CacheKey(edge.ReferrerID))
	return edge, nil
}

// FindByCustomerID reads the edge targeting customerID straight from the store
func (s *CachingEdgeStore) FindByCustomerID(ctx context.Context, customerID string) (*referral.Referral, error) {
	return s.store.FindByCustomerID(ctx, customerID)
}

// FindRoots reads the root edges straight from the store; the root list is not cached
func (s *CachingEdgeStore) FindRoots(ctx context.Context) ([]referral.Referral, error) {
	return s.store.FindRoots(ctx)
}

// readCached looks key up in the cache. cacheUsable is false when the cache
// could not be consulted, in which case the caller must not populate it.
func (s *CachingEdgeStore) readCached(ctx context.Context, key string) (edges []referral.Referral, hit bool, cacheUsable bool) {
	log := logger.Ctx(ctx, s.logger)
	st := s.stripe(key)

	if st.isDirty(key) && !s.retryInvalidation(ctx, st, key) {
		return nil, false, false
	}

	raw, found, err := s.cacheGet(ctx, key)
	if err != nil {
		log.Warn("referral cache unavailable, reading from store", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheDegraded(ctx, "get")
		return nil, false, false
	}
	if !found {
		return nil, false, true
	}

	if err := json.Unmarshal(raw, &edges); err != nil {
		log.Warn("discarding undecodable referral cache entry", zap.String("key", key), zap.Error(err))
		return nil, false, true
	}
	if edges == nil {
		edges = []referral.Referral{}
	}
	return edges, true, true
}

func (s *CachingEdgeStore) populate(ctx context.Context, st *keyStripe, key string, gen uint64, edges []referral.Referral) {
	log := logger.Ctx(ctx, s.logger)

	payload, err := json.Marshal(edges)
	if err != nil {
		log.Error("failed to encode referral list", zap.String("key", key), zap.Error(err))
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.generations[key] != gen {
		log.Debug("skipping stale cache population", zap.String("key", key))
		return
	}
	if _, dirty := st.dirty[key]; dirty {
		return
	}
	if err := s.cacheSet(ctx, key, payload); err != nil {
		log.Warn("failed to populate referral cache", zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheDegraded(ctx, "set")
	}
}

func (s *CachingEdgeStore) invalidate(ctx context.Context, key string) {
	st := s.stripe(key)

	st.mu.Lock()
	st.generations[key]++
	err := s.cacheDelete(ctx, key)
	if err != nil {
		st.dirty[key] = struct{}{}
	} else {
		delete(st.dirty, key)
	}
	st.mu.Unlock()

	if err != nil {
		logger.Ctx(ctx, s.logger).Warn("failed to invalidate referral cache entry",
			zap.String("key", key), zap.Error(err))
		s.metrics.RecordCacheDegraded(ctx, "delete")
		return
	}
	s.metrics.RecordInvalidation(ctx)
}

// retryInvalidation retries a delete that previously failed. Until it
// succeeds the entry may be stale, so reads of the key bypass the cache.
func (s *CachingEdgeStore) retryInvalidation(ctx context.Context, st *keyStripe, key string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, dirty := st.dirty[key]; !dirty {
		return true
	}
	if err := s.cacheDelete(ctx, key); err != nil {
		s.metrics.RecordCacheDegraded(ctx, "delete")
		return false
	}
	delete(st.dirty, key)
	s.metrics.RecordInvalidation(ctx)
	return true
}

type cachedValue struct {
	raw   []byte
	found bool
}

func (s *CachingEdgeStore) cacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.breaker.Execute(func() (interface{}, error) {
		raw, found, err := s.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return cachedValue{raw: raw, found: found}, nil
	})
	if err != nil {
		return nil, false, err
	}
	cv := v.(cachedValue)
	return cv.raw, cv.found, nil
}

func (s *CachingEdgeStore) cacheSet(ctx context.Context, key string, payload []byte) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.cache.Set(ctx, key, payload, s.ttl)
	})
	return err
}

func (s *CachingEdgeStore) cacheDelete(ctx context.Context, key string) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.cache.Delete(ctx, key)
	})
	return err
}

func (s *CachingEdgeStore) stripe(key string) *keyStripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.stripes[h.Sum32()%lockStripes]
}

func (st *keyStripe) generation(key string) uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.generations[key]
}

func (st *keyStripe) isDirty(key string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, dirty := st.dirty[key]
	return dirty
}
