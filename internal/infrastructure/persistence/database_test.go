package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpen(t *testing.T) {
	t.Run("applies pool and logger", func(t *testing.T) {
		log := gormlogger.Default.LogMode(gormlogger.Warn)
		db, err := Open(sqlite.Open(":memory:"), Pool{MaxOpenConns: 1, MaxIdleConns: 1}, WithGormLogger(log))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })

		sqlDB, err := db.DB.DB()
		require.NoError(t, err)
		assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
		assert.Same(t, log, db.DB.Config.Logger)
		assert.NoError(t, db.Ping(context.Background()))
	})

	t.Run("ping after close fails", func(t *testing.T) {
		db, err := Open(sqlite.Open(":memory:"), Pool{})
		require.NoError(t, err)
		require.NoError(t, db.Close())

		assert.Error(t, db.Ping(context.Background()))
	})
}
