package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Cache       CacheConfig
	Leaderboard LeaderboardConfig
	Bonus       BonusConfig
	Log         LogConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig holds referral cache settings
type CacheConfig struct {
	TTL                   time.Duration // lifetime of a cached referral list
	AllowInMemoryFallback bool          // use a process-local cache when Redis is unreachable at startup
	BreakerFailures       uint32        // consecutive cache failures before reads bypass the cache
	BreakerCooldown       time.Duration // how long the cache is bypassed before it is probed again
}

// LeaderboardConfig holds leaderboard computation settings
type LeaderboardConfig struct {
	Size     int           // number of customers on the leaderboard
	Parallel bool          // compute one task per referral tree on a worker pool
	Workers  int           // worker pool bound
	Timeout  time.Duration // overall bound on a leaderboard computation
}

// BonusConfig holds the per-tier referral bonus weights
type BonusConfig struct {
	FirstLevel  float64
	SecondLevel float64
	ThirdLevel  float64
}

// TelemetryConfig holds OpenTelemetry tracing and metrics configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration
	SamplingRatio     float64 // 0.0 to 1.0
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with REFERRAL_ prefix (e.g., REFERRAL_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("REFERRAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans whose default is true need an explicit default, an unset key reads as false
	v.SetDefault("cache.allow_in_memory_fallback", true)
	v.SetDefault("leaderboard.parallel", true)
	v.SetDefault("telemetry.sampling_ratio", 1.0)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			TTL:                   v.GetDuration("cache.ttl"),
			AllowInMemoryFallback: v.GetBool("cache.allow_in_memory_fallback"),
			BreakerFailures:       v.GetUint32("cache.breaker_failures"),
			BreakerCooldown:       v.GetDuration("cache.breaker_cooldown"),
		},
		Leaderboard: LeaderboardConfig{
			Size:     v.GetInt("leaderboard.size"),
			Parallel: v.GetBool("leaderboard.parallel"),
			Workers:  v.GetInt("leaderboard.workers"),
			Timeout:  v.GetDuration("leaderboard.timeout"),
		},
		Bonus: BonusConfig{
			FirstLevel:  v.GetFloat64("bonus.first_level"),
			SecondLevel: v.GetFloat64("bonus.second_level"),
			ThirdLevel:  v.GetFloat64("bonus.third_level"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "referral-service"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "referrals"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 3600 * time.Second
	}
	if cfg.Cache.BreakerFailures == 0 {
		cfg.Cache.BreakerFailures = 5
	}
	if cfg.Cache.BreakerCooldown == 0 {
		cfg.Cache.BreakerCooldown = 30 * time.Second
	}
	if cfg.Leaderboard.Size == 0 {
		cfg.Leaderboard.Size = 5
	}
	if cfg.Leaderboard.Workers == 0 {
		cfg.Leaderboard.Workers = 8
	}
	if cfg.Leaderboard.Timeout == 0 {
		cfg.Leaderboard.Timeout = 30 * time.Second
	}
	if cfg.Bonus.FirstLevel == 0 && cfg.Bonus.SecondLevel == 0 && cfg.Bonus.ThirdLevel == 0 {
		cfg.Bonus.FirstLevel = 10
		cfg.Bonus.SecondLevel = 3
		cfg.Bonus.ThirdLevel = 1
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "referral-service"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Cache.TTL < time.Second {
		return fmt.Errorf("cache.ttl must be at least 1s, got %s", c.Cache.TTL)
	}
	if c.Leaderboard.Size < 1 {
		return fmt.Errorf("leaderboard.size must be positive")
	}
	if c.Leaderboard.Workers < 1 {
		return fmt.Errorf("leaderboard.workers must be positive")
	}
	if c.Leaderboard.Timeout <= 0 {
		return fmt.Errorf("leaderboard.timeout must be positive")
	}
	if c.Bonus.FirstLevel < 0 || c.Bonus.SecondLevel < 0 || c.Bonus.ThirdLevel < 0 {
		return fmt.Errorf("bonus weights cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %v", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
