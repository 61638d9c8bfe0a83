package referral

import (
	"context"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/shopspring/decimal"
)

// tierDepth is the number of referral levels that earn a bonus
const tierDepth = 3

// TierAggregator counts a customer's referrals one, two and three levels deep
type TierAggregator struct {
	graph   *GraphAccessor
	weights referral.BonusWeights
}

// NewTierAggregator creates a TierAggregator with the given bonus weights
func NewTierAggregator(graph *GraphAccessor, weights referral.BonusWeights) *TierAggregator {
	return &TierAggregator{graph: graph, weights: weights}
}

// Weights returns the bonus weights in use
func (a *TierAggregator) Weights() referral.BonusWeights {
	return a.weights
}

// Tiers returns the number of referrals at each of the three levels below customerID.
// Every customer has a single referrer, so each level is the plain sum of the
// previous level's direct-referral counts and never needs deduplication.
func (a *TierAggregator) Tiers(ctx context.Context, customerID string) (referral.ReferralTiers, error) {
	var counts [tierDepth]int

	frontier := []string{customerID}
	for level := 0; level < tierDepth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return referral.ReferralTiers{}, err
			}
			children, err := a.graph.DirectReferralIDs(ctx, id)
			if err != nil {
				return referral.ReferralTiers{}, err
			}
			counts[level] += len(children)
			next = append(next, children...)
		}
		frontier = next
	}

	return referral.ReferralTiers{
		NumFirstLevel:  counts[0],
		NumSecondLevel: counts[1],
		NumThirdLevel:  counts[2],
	}, nil
}

// Bonus returns the tier counts of customerID together with the bonus they earn
func (a *TierAggregator) Bonus(ctx context.Context, customerID string) (referral.ReferralTiers, decimal.Decimal, error) {
	tiers, err := a.Tiers(ctx, customerID)
	if err != nil {
		return referral.ReferralTiers{}, decimal.Zero, err
	}
	return tiers, tiers.Bonus(a.weights), nil
}
