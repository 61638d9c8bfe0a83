package persistence

import (
	"context"
	"errors"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCustomerDirectory looks up customer display names in the customers table
type GormCustomerDirectory struct {
	db *gorm.DB
}

// NewGormCustomerDirectory creates a new GormCustomerDirectory
func NewGormCustomerDirectory(db *gorm.DB) *GormCustomerDirectory {
	return &GormCustomerDirectory{db: db}
}

// NameOf returns the customer's name, or false if the customer is unknown
func (d *GormCustomerDirectory) NameOf(ctx context.Context, customerID string) (string, bool, error) {
	var row models.CustomerModel
	err := d.db.WithContext(ctx).
		Select("id", "name").
		First(&row, "id = ?", customerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Name, true, nil
}

var _ referral.CustomerDirectory = (*GormCustomerDirectory)(nil)
