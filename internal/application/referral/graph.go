package referral

import (
	"context"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
)

// ReferralStore is the cache-aside view of the edge store that the
// aggregation components read through and that writes go through.
type ReferralStore interface {
	GetDirectReferrals(ctx context.Context, referrerID string) ([]referral.Referral, error)
	AddReferral(ctx context.Context, edge *referral.Referral) (*referral.Referral, error)
	FindByCustomerID(ctx context.Context, customerID string) (*referral.Referral, error)
	FindRoots(ctx context.Context) ([]referral.Referral, error)
}

// GraphAccessor looks up a customer's direct referrals. It holds no state of
// its own; every call reflects the store as seen through the cache.
type GraphAccessor struct {
	store ReferralStore
}

// NewGraphAccessor creates a new GraphAccessor
func NewGraphAccessor(store ReferralStore) *GraphAccessor {
	return &GraphAccessor{store: store}
}

// GetDirectReferrals returns the edges whose referrer is customerID, never nil
func (g *GraphAccessor) GetDirectReferrals(ctx context.Context, customerID string) ([]referral.Referral, error) {
	edges, err := g.store.GetDirectReferrals(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if edges == nil {
		edges = []referral.Referral{}
	}
	return edges, nil
}

// DirectReferralIDs returns the customer ids of customerID's direct referrals
func (g *GraphAccessor) DirectReferralIDs(ctx context.Context, customerID string) ([]string, error) {
	edges, err := g.GetDirectReferrals(ctx, customerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i := range edges {
		ids[i] = edges[i].CustomerID
	}
	return ids, nil
}
