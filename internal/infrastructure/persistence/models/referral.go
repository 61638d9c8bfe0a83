// Package models contains GORM-specific persistence models that map to database tables.
// Domain entities stay free of GORM tags; mappers convert between the two.
package models

import (
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
)

// ReferralModel is the persistence model for a referral edge.
// customer_id is the primary key, which is what keeps each customer to a single referrer.
type ReferralModel struct {
	CustomerID string    `gorm:"column:customer_id;type:varchar(64);primaryKey"`
	ReferrerID *string   `gorm:"column:referrer_id;type:varchar(64);index"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
}

// TableName returns the table name for GORM
func (ReferralModel) TableName() string {
	return "referrals"
}

// ToDomain converts the persistence model to a domain referral
func (m *ReferralModel) ToDomain() referral.Referral {
	r := referral.Referral{
		CustomerID: m.CustomerID,
		CreatedAt:  m.CreatedAt.UTC(),
	}
	if m.ReferrerID != nil {
		r.ReferrerID = *m.ReferrerID
	}
	return r
}

// ReferralModelFromDomain creates a persistence model from a domain referral.
// A root edge is stored with a NULL referrer.
func ReferralModelFromDomain(r *referral.Referral) *ReferralModel {
	m := &ReferralModel{
		CustomerID: r.CustomerID,
		CreatedAt:  r.CreatedAt,
	}
	if !r.IsRoot() {
		referrerID := r.ReferrerID
		m.ReferrerID = &referrerID
	}
	return m
}

// CustomerModel is the read-only view of the customers table used for display names
type CustomerModel struct {
	ID   string `gorm:"column:id;type:varchar(64);primaryKey"`
	Name string `gorm:"column:name;type:varchar(200)"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}
