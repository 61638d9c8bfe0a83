package persistence

import (
	"context"
	"errors"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReferralRepository implements referral.EdgeStore using GORM
type GormReferralRepository struct {
	db *gorm.DB
}

// NewGormReferralRepository creates a new GormReferralRepository
func NewGormReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

// FindByReferrerID finds every edge whose referrer is referrerID
func (r *GormReferralRepository) FindByReferrerID(ctx context.Context, referrerID string) ([]referral.Referral, error) {
	var rows []models.ReferralModel
	if err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at ASC, customer_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainReferrals(rows), nil
}

// FindByCustomerID finds the edge targeting customerID
func (r *GormReferralRepository) FindByCustomerID(ctx context.Context, customerID string) (*referral.Referral, error) {
	var row models.ReferralModel
	if err := r.db.WithContext(ctx).First(&row, "customer_id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	result := row.ToDomain()
	return &result, nil
}

// FindRoots finds every edge without a referrer
func (r *GormReferralRepository) FindRoots(ctx context.Context) ([]referral.Referral, error) {
	var rows []models.ReferralModel
	if err := r.db.WithContext(ctx).
		Where("referrer_id IS NULL").
		Order("customer_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainReferrals(rows), nil
}

// Insert appends a new edge. An existing edge for the same customer is never
// overwritten; the conflict is reported as shared.ErrAlreadyExists.
func (r *GormReferralRepository) Insert(ctx context.Context, ref *referral.Referral) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.ReferralModelFromDomain(ref))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("ALREADY_EXISTS", "Customer "+ref.CustomerID+" already has a referrer")
	}
	return nil
}

func toDomainReferrals(rows []models.ReferralModel) []referral.Referral {
	out := make([]referral.Referral, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

// Ensure GormReferralRepository implements EdgeStore
var _ referral.EdgeStore = (*GormReferralRepository)(nil)
