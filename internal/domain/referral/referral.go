package referral

import (
	"strings"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
)

// Referral is a directed edge from a referrer to the customer they recruited.
// A customer is the target of at most one edge, so the set of edges is a forest.
// An empty ReferrerID marks a root (a customer nobody referred).
type Referral struct {
	CustomerID string    `json:"customerId"`
	ReferrerID string    `json:"referrerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewReferral creates a new referral edge.
// Blank referrer ids are normalized to the root marker before the edge is ever stored.
func NewReferral(customerID, referrerID string, createdAt time.Time) (*Referral, error) {
	customerID = strings.TrimSpace(customerID)
	referrerID = strings.TrimSpace(referrerID)

	if customerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Request must contain a valid customer ID")
	}
	if customerID == referrerID {
		return nil, shared.NewDomainError("INVALID_INPUT", "A customer cannot refer themselves")
	}

	return &Referral{
		CustomerID: customerID,
		ReferrerID: referrerID,
		CreatedAt:  createdAt.UTC(),
	}, nil
}

// IsRoot returns true if the customer has no referrer
func (r *Referral) IsRoot() bool {
	return r.ReferrerID == ""
}

// CacheKeyPrefix is prepended to a referrer id to build its cache key
const CacheKeyPrefix = "ReferralKey::"

// CacheKey returns the cache key holding the direct referrals of referrerID
func CacheKey(referrerID string) string {
	return CacheKeyPrefix + referrerID
}
