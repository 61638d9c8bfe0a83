package referral

import (
	"context"
	"errors"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ReferralService handles referral-related business operations
type ReferralService struct {
	store       ReferralStore
	graph       *GraphAccessor
	tiers       *TierAggregator
	leaderboard *LeaderboardEngine
	directory   referral.CustomerDirectory
	validate    *validator.Validate
	now         func() time.Time
	logger      *zap.Logger
}

// ServiceOption is a functional option for configuring the service
type ServiceOption func(*ReferralService)

// WithServiceLogger sets the logger
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *ReferralService) {
		s.logger = logger
	}
}

// WithDirectory sets the customer directory used to decorate the leaderboard view
func WithDirectory(directory referral.CustomerDirectory) ServiceOption {
	return func(s *ReferralService) {
		s.directory = directory
	}
}

// WithClock sets the clock that stamps new referrals
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ReferralService) {
		s.now = now
	}
}

// NewReferralService creates a new ReferralService
func NewReferralService(store ReferralStore, tiers *TierAggregator, leaderboard *LeaderboardEngine, opts ...ServiceOption) *ReferralService {
	s := &ReferralService{
		store:       store,
		graph:       NewGraphAccessor(store),
		tiers:       tiers,
		leaderboard: leaderboard,
		validate:    newValidator(),
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddReferral records that req.ReferrerID referred req.CustomerID.
// A customer can be added once; the referrer, if any, must already be known.
func (s *ReferralService) AddReferral(ctx context.Context, req AddReferralRequest) (*ReferralResponse, error) {
	req = req.normalize()
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	if req.ReferrerID != "" {
		if _, err := s.store.FindByCustomerID(ctx, req.ReferrerID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("INVALID_INPUT", "Referrer "+req.ReferrerID+" does not exist")
			}
			return nil, err
		}
	}

	edge, err := referral.NewReferral(req.CustomerID, req.ReferrerID, s.now())
	if err != nil {
		return nil, err
	}

	committed, err := s.store.AddReferral(ctx, edge)
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx, s.logger).Info("referral added",
		zap.String("customer_id", committed.CustomerID),
		zap.String("referrer_id", committed.ReferrerID),
	)
	return ToReferralResponse(committed), nil
}

// GetDirectReferrals returns the customers directly referred by customerID.
// A customer with no referrals gets an empty slice, never nil and never an error.
func (s *ReferralService) GetDirectReferrals(ctx context.Context, customerID string) ([]referral.Referral, error) {
	return s.graph.GetDirectReferrals(ctx, customerID)
}

// GetReferralTiers returns customerID's first, second and third level referral counts
func (s *ReferralService) GetReferralTiers(ctx context.Context, customerID string) (referral.ReferralTiers, error) {
	return s.tiers.Tiers(ctx, customerID)
}

// GetReferralSummary returns the tier counts of customerID with the bonus they earn
func (s *ReferralService) GetReferralSummary(ctx context.Context, customerID string) (*ReferralSummaryResponse, error) {
	tiers, bonus, err := s.tiers.Bonus(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &ReferralSummaryResponse{
		CustomerID: customerID,
		Tiers:      tiers,
		Total:      tiers.Total(),
		Bonus:      bonus,
	}, nil
}

// GetLeaderboard returns the customers with the most direct referrals
func (s *ReferralService) GetLeaderboard(ctx context.Context) ([]referral.LeaderboardEntry, error) {
	return s.leaderboard.Leaderboard(ctx)
}

// GetLeaderboardView returns the leaderboard with display names.
// Names are looked up after ranking; a missing name or a directory failure
// leaves the name empty and never changes the order.
func (s *ReferralService) GetLeaderboardView(ctx context.Context) ([]LeaderboardViewEntry, error) {
	entries, err := s.leaderboard.Leaderboard(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Ctx(ctx, s.logger)
	view := make([]LeaderboardViewEntry, len(entries))
	for i, e := range entries {
		view[i] = LeaderboardViewEntry{
			Rank:         i + 1,
			CustomerID:   e.CustomerID,
			NumReferrals: e.NumReferrals,
		}
		if s.directory == nil {
			continue
		}
		name, ok, err := s.directory.NameOf(ctx, e.CustomerID)
		if err != nil {
			log.Warn("failed to look up customer name", zap.String("customer_id", e.CustomerID), zap.Error(err))
			continue
		}
		if ok {
			view[i].Name = name
		}
	}
	return view, nil
}
