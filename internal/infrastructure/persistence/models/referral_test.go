package models

import (
	"testing"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/domain/referral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralModelMapping(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("root edge stores null referrer", func(t *testing.T) {
		m := ReferralModelFromDomain(&referral.Referral{CustomerID: "a", CreatedAt: now})
		assert.Nil(t, m.ReferrerID)

		back := m.ToDomain()
		assert.True(t, back.IsRoot())
		assert.Equal(t, "a", back.CustomerID)
		assert.True(t, now.Equal(back.CreatedAt))
	})

	t.Run("child edge keeps referrer", func(t *testing.T) {
		in := &referral.Referral{CustomerID: "b", ReferrerID: "a", CreatedAt: now}
		m := ReferralModelFromDomain(in)
		require.NotNil(t, m.ReferrerID)
		assert.Equal(t, "a", *m.ReferrerID)

		// the model owns its own copy of the referrer id
		in.ReferrerID = "changed"
		assert.Equal(t, "a", *m.ReferrerID)
		assert.Equal(t, "a", m.ToDomain().ReferrerID)
	})

	t.Run("table names", func(t *testing.T) {
		assert.Equal(t, "referrals", ReferralModel{}.TableName())
		assert.Equal(t, "customers", CustomerModel{}.TableName())
	})
}
