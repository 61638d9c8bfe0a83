package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/shared"
	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupReferralTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.ReferralModel{}, &models.CustomerModel{}))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// newMockReferralRepository creates a GormReferralRepository with a mocked SQL connection
func newMockReferralRepository(t *testing.T) (*GormReferralRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormReferralRepository(gormDB), mock, mockDB
}

func mustReferral(t *testing.T, customerID, referrerID string, at time.Time) *referral.Referral {
	r, err := referral.NewReferral(customerID, referrerID, at)
	require.NoError(t, err)
	return r
}

func TestGormReferralRepository_InsertAndFind(t *testing.T) {
	db := setupReferralTestDB(t)
	repo := NewGormReferralRepository(db)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, mustReferral(t, "root-b", "", base)))
	require.NoError(t, repo.Insert(ctx, mustReferral(t, "root-a", "", base)))
	require.NoError(t, repo.Insert(ctx, mustReferral(t, "c2", "root-a", base.Add(2*time.Minute))))
	require.NoError(t, repo.Insert(ctx, mustReferral(t, "c1", "root-a", base.Add(time.Minute))))

	t.Run("finds direct referrals in creation order", func(t *testing.T) {
		got, err := repo.FindByReferrerID(ctx, "root-a")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "c1", got[0].CustomerID)
		assert.Equal(t, "c2", got[1].CustomerID)
		assert.Equal(t, "root-a", got[0].ReferrerID)
		assert.True(t, base.Add(time.Minute).Equal(got[0].CreatedAt))
	})

	t.Run("no referrals is an empty non-nil slice", func(t *testing.T) {
		got, err := repo.FindByReferrerID(ctx, "c1")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("roots are edges without referrer", func(t *testing.T) {
		got, err := repo.FindRoots(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "root-a", got[0].CustomerID)
		assert.Equal(t, "root-b", got[1].CustomerID)
		assert.True(t, got[0].IsRoot())
	})

	t.Run("finds by customer id", func(t *testing.T) {
		got, err := repo.FindByCustomerID(ctx, "c2")
		require.NoError(t, err)
		assert.Equal(t, "root-a", got.ReferrerID)

		_, err = repo.FindByCustomerID(ctx, "nobody")
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})

	t.Run("never overwrites an existing edge", func(t *testing.T) {
		err := repo.Insert(ctx, mustReferral(t, "c1", "root-b", base))
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

		got, err := repo.FindByCustomerID(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "root-a", got.ReferrerID)
	})
}

func TestGormReferralRepository_ConcurrentInsertSameCustomer(t *testing.T) {
	db := setupReferralTestDB(t)
	repo := NewGormReferralRepository(db)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, _ := referral.NewReferral("x", fmt.Sprintf("r%d", i), time.Now())
			errs[i] = repo.Insert(ctx, r)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
	}
	assert.Equal(t, 1, succeeded)

	var count int64
	require.NoError(t, db.Model(&models.ReferralModel{}).Where("customer_id = ?", "x").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGormReferralRepository_SQL(t *testing.T) {
	t.Run("insert uses on conflict do nothing", func(t *testing.T) {
		repo, mock, mockDB := newMockReferralRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "referrals" .* ON CONFLICT DO NOTHING`).
			WithArgs("b", "a", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Insert(context.Background(), &referral.Referral{CustomerID: "b", ReferrerID: "a", CreatedAt: time.Now()})

		assert.True(t, errors.Is(err, shared.ErrAlreadyExists))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store errors are returned unchanged", func(t *testing.T) {
		repo, mock, mockDB := newMockReferralRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "referrals" WHERE referrer_id = \$1`).
			WithArgs("a").
			WillReturnError(sql.ErrConnDone)

		_, err := repo.FindByReferrerID(context.Background(), "a")

		assert.True(t, errors.Is(err, sql.ErrConnDone))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("roots query filters null referrer", func(t *testing.T) {
		repo, mock, mockDB := newMockReferralRepository(t)
		defer mockDB.Close()

		rows := sqlmock.NewRows([]string{"customer_id", "referrer_id", "created_at"}).
			AddRow("r1", nil, time.Now())
		mock.ExpectQuery(`SELECT \* FROM "referrals" WHERE referrer_id IS NULL ORDER BY customer_id ASC`).
			WillReturnRows(rows)

		got, err := repo.FindRoots(context.Background())

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsRoot())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCustomerDirectory_NameOf(t *testing.T) {
	db := setupReferralTestDB(t)
	require.NoError(t, db.Create(&models.CustomerModel{ID: "c1", Name: "Ada"}).Error)
	dir := NewGormCustomerDirectory(db)
	ctx := context.Background()

	name, ok, err := dir.NameOf(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ada", name)

	name, ok, err = dir.NameOf(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, name)
}
