package cache

import (
	"context"
	"testing"
	"time"

	"github.com/KRDOldAccount/UnitFiveProject/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// unreachableRedis points at a port nothing listens on
var unreachableRedis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

func TestReferralCacheFactory_FallsBackToInMemory(t *testing.T) {
	f := NewReferralCacheFactory(unreachableRedis, WithFactoryLogger(zaptest.NewLogger(t)))

	c, err := f.CreateCache()
	require.NoError(t, err)
	_, ok := c.(*InMemoryReferralCache)
	assert.True(t, ok, "expected in-memory fallback, got %T", c)
}

func TestReferralCacheFactory_FallbackDisabled(t *testing.T) {
	f := NewReferralCacheFactory(unreachableRedis, WithInMemoryFallback(false))

	c, err := f.CreateCache()
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis required for referral cache")
}

func TestInMemoryReferralCache(t *testing.T) {
	c := NewInMemoryReferralCache(time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	value := []byte(`[{"customerId":"a"}]`)
	require.NoError(t, c.Set(ctx, "k", value, time.Hour))
	value[0] = 'X'

	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `[{"customerId":"a"}]`, string(got), "stored value must not alias the caller's slice")

	require.NoError(t, c.Set(ctx, "short", []byte("[]"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, found, err = c.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, found, "expired entries are misses")

	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Delete(ctx, "k"))
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}
