package logger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"default config", DefaultConfig()},
		{"service field", &Config{Format: "json", Service: "referral"}},
		{"nil config", nil},
		{"stderr output", &Config{Level: "debug", Format: "json", Output: "stderr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}

	t.Run("file output writes json lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		log, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "referral"})
		require.NoError(t, err)

		log.Info("leaderboard computed", zap.Int("entries", 5))
		require.NoError(t, log.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"msg":"leaderboard computed"`)
		assert.Contains(t, string(data), `"entries":5`)
		assert.Contains(t, string(data), `"service":"referral"`)
	})

	t.Run("unwritable file output fails", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "app.log")})
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("unknown"))
}

func TestContextLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	t.Run("from empty context is no-op", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})

	t.Run("request id enriches logger", func(t *testing.T) {
		ctx, enriched := WithRequestID(context.Background(), base, "req-1")
		enriched.Info("hello")

		assert.Equal(t, "req-1", GetRequestID(ctx))
		assert.Same(t, enriched, FromContext(ctx))

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "req-1", logs[0].ContextMap()["request_id"])
	})

	t.Run("ctx falls back and keeps request id", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), RequestIDKey, "req-2")
		Ctx(ctx, base).Info("fallback")

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "req-2", logs[0].ContextMap()["request_id"])
	})

	t.Run("ctx without anything returns fallback", func(t *testing.T) {
		assert.Same(t, base, Ctx(context.Background(), base))
	})
}

func TestGormLogger(t *testing.T) {
	t.Run("log mode returns copy", func(t *testing.T) {
		gl := NewGormLogger(zap.NewNop(), gormlogger.Info)
		changed, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
		require.True(t, ok)
		assert.Equal(t, gormlogger.Info, gl.logLevel)
		assert.Equal(t, gormlogger.Warn, changed.logLevel)
	})

	t.Run("trace logs errors except record not found", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info)
		fc := func() (string, int64) { return "SELECT 1", 1 }

		gl.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)

		gl.Trace(context.Background(), time.Now(), fc, errors.New("connection refused"))
		logs = recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	})

	t.Run("trace warns on slow query", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(time.Millisecond))

		gl.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
			return "SELECT * FROM referrals", 3
		}, nil)

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("silent suppresses everything", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Silent)
		gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "", 0 }, errors.New("x"))
		gl.Info(context.Background(), "ignored")
		assert.Empty(t, recorded.All())
	})

	t.Run("uses the request logger from the context", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.NewNop(), gormlogger.Info)
		ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-7")

		gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)

		logs := recorded.TakeAll()
		require.Len(t, logs, 1)
		assert.Equal(t, "req-7", logs[0].ContextMap()["request_id"])
	})

	t.Run("maps levels", func(t *testing.T) {
		assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
		assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
		assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
	})
}
