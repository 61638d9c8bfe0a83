package referral

import (
	"github.com/shopspring/decimal"
)

// ReferralTiers holds the referral counts of a customer at depth one, two and three
type ReferralTiers struct {
	NumFirstLevel  int `json:"numFirstLevelReferrals"`
	NumSecondLevel int `json:"numSecondLevelReferrals"`
	NumThirdLevel  int `json:"numThirdLevelReferrals"`
}

// BonusWeights are the per-referral bonus amounts for each tier
type BonusWeights struct {
	FirstLevel  decimal.Decimal
	SecondLevel decimal.Decimal
	ThirdLevel  decimal.Decimal
}

// DefaultBonusWeights returns the reference weights 10, 3 and 1
func DefaultBonusWeights() BonusWeights {
	return BonusWeights{
		FirstLevel:  decimal.NewFromInt(10),
		SecondLevel: decimal.NewFromInt(3),
		ThirdLevel:  decimal.NewFromInt(1),
	}
}

// Bonus computes w1*first + w2*second + w3*third
func (t ReferralTiers) Bonus(w BonusWeights) decimal.Decimal {
	return w.FirstLevel.Mul(decimal.NewFromInt(int64(t.NumFirstLevel))).
		Add(w.SecondLevel.Mul(decimal.NewFromInt(int64(t.NumSecondLevel)))).
		Add(w.ThirdLevel.Mul(decimal.NewFromInt(int64(t.NumThirdLevel))))
}

// Total returns the number of referrals across all three tiers
func (t ReferralTiers) Total() int {
	return t.NumFirstLevel + t.NumSecondLevel + t.NumThirdLevel
}
