package referral

import (
	"context"
	"time"
)

// EdgeStore defines the interface for durable referral edge storage
type EdgeStore interface {
	// FindByReferrerID returns every edge whose referrer is referrerID (possibly empty, never nil)
	FindByReferrerID(ctx context.Context, referrerID string) ([]Referral, error)

	// FindByCustomerID returns the edge targeting customerID, or shared.ErrNotFound
	FindByCustomerID(ctx context.Context, customerID string) (*Referral, error)

	// FindRoots returns every edge without a referrer
	FindRoots(ctx context.Context) ([]Referral, error)

	// Insert appends a new edge. It never overwrites an existing edge for the same
	// customer and returns shared.ErrAlreadyExists instead.
	Insert(ctx context.Context, referral *Referral) error
}

// ReferralCache is a TTL key/value cache of serialized referral lists.
// Each operation is atomic for its key; no cross-key coordination is provided.
type ReferralCache interface {
	// Get returns the cached value and true, or false on a miss.
	// An error means the cache itself could not be reached.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error
}

// CustomerDirectory resolves display names. It is decoration only and never
// influences counts or ranking.
type CustomerDirectory interface {
	// NameOf returns the customer's name and whether it was found
	NameOf(ctx context.Context, customerID string) (string, bool, error)
}
