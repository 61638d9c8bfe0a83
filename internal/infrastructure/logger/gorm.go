package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger is a gorm logger.Interface that writes to zap. Statements are
// logged through the request logger attached to the query context, if any.
type GormLogger struct {
	logger    *zap.Logger
	logLevel  gormlogger.LogLevel
	slowQuery time.Duration
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged as slow; zero disables it
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowQuery = threshold
	}
}

// NewGormLogger creates a GormLogger
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		logger:    zapLogger.Named("gorm"),
		logLevel:  level,
		slowQuery: defaultSlowQuery,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.logLevel = level
	return &c
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []any) {
	if l.logLevel < min {
		return
	}
	l.from(ctx).Log(level, fmt.Sprintf(msg, data...))
}

// Trace implements gormlogger.Interface. A missing row is a normal outcome
// for edge lookups and is never logged as an error.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound)
	slow := l.slowQuery > 0 && elapsed > l.slowQuery

	var level zapcore.Level
	var msg string
	switch {
	case failed && l.logLevel >= gormlogger.Error:
		level, msg = zapcore.ErrorLevel, "SQL error"
	case slow && l.logLevel >= gormlogger.Warn:
		level, msg = zapcore.WarnLevel, "Slow SQL"
	case l.logLevel >= gormlogger.Info:
		level, msg = zapcore.DebugLevel, "SQL query"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}
	if slow {
		fields = append(fields, zap.Duration("threshold", l.slowQuery))
	}
	if failed {
		fields = append(fields, zap.Error(err))
	}
	l.from(ctx).Log(level, msg, fields...)
}

func (l *GormLogger) from(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return l.logger
	}
	return Ctx(ctx, l.logger)
}

// MapGormLogLevel converts an application log level to the gorm level that
// shows the same amount of SQL. Statements are only traced at debug and info.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
