package referral

import (
	"strings"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/shopspring/decimal"
)

// AddReferralRequest represents a request to record who referred a customer.
// An empty ReferrerID makes the customer a root.
type AddReferralRequest struct {
	CustomerID string `json:"customerId" validate:"required,max=64"`
	ReferrerID string `json:"referrerId" validate:"omitempty,max=64,nefield=CustomerID"`
}

// normalize trims both ids so that a blank referrer always means root
func (r AddReferralRequest) normalize() AddReferralRequest {
	return AddReferralRequest{
		CustomerID: strings.TrimSpace(r.CustomerID),
		ReferrerID: strings.TrimSpace(r.ReferrerID),
	}
}

// ReferralResponse represents a committed referral edge
type ReferralResponse struct {
	CustomerID string    `json:"customerId"`
	ReferrerID string    `json:"referrerId,omitempty"`
	IsRoot     bool      `json:"isRoot"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ToReferralResponse converts a domain Referral to a response
func ToReferralResponse(r *referral.Referral) *ReferralResponse {
	return &ReferralResponse{
		CustomerID: r.CustomerID,
		ReferrerID: r.ReferrerID,
		IsRoot:     r.IsRoot(),
		CreatedAt:  r.CreatedAt,
	}
}

// ReferralSummaryResponse holds a customer's tier counts and the bonus they earn
type ReferralSummaryResponse struct {
	CustomerID string                 `json:"customerId"`
	Tiers      referral.ReferralTiers `json:"tiers"`
	Total      int                    `json:"totalReferrals"`
	Bonus      decimal.Decimal        `json:"bonus"`
}

// LeaderboardViewEntry is a leaderboard entry decorated with the customer's display name
type LeaderboardViewEntry struct {
	Rank         int    `json:"rank"`
	CustomerID   string `json:"customerId"`
	Name         string `json:"name,omitempty"`
	NumReferrals int    `json:"numReferrals"`
}
