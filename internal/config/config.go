package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/radiusdt/roas-board/internal/analytics"
)

// EnvPrefix is prepended to every environment override, e.g. ROAS_BOARD_SERVER_ADDR.
const EnvPrefix = "ROAS_BOARD"

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickHouse = "clickhouse"
	BackendRedis      = "redis"
	BackendSQLite     = "sqlite"
)

// Config holds all configuration for the roas-board service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects where rows come from and where board state is kept.
type StorageConfig struct {
	Rows  string `mapstructure:"rows"`
	State string `mapstructure:"state"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// ClickHouseConfig configures the read-only row source.
type ClickHouseConfig struct {
	Addr        []string      `mapstructure:"addr"`
	Database    string        `mapstructure:"database"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Table       string        `mapstructure:"table"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	MasterKey string   `mapstructure:"master_key"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DashboardConfig holds the defaults a new board starts from.
type DashboardConfig struct {
	TrailingDays     int      `mapstructure:"trailing_days"`
	DefaultCriterion string   `mapstructure:"default_criterion"`
	DefaultView      string   `mapstructure:"default_view"`
	VisibleColumns   []string `mapstructure:"visible_columns"`
}

// Load reads configuration from an optional YAML file and ROAS_BOARD_*
// environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("storage.rows", BackendMemory)
	v.SetDefault("storage.state", BackendMemory)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "roasboard")
	v.SetDefault("database.password", "roasboard_secret")
	v.SetDefault("database.dbname", "roasboard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "roasboard:")

	v.SetDefault("clickhouse.addr", []string{"localhost:9000"})
	v.SetDefault("clickhouse.database", "default")
	v.SetDefault("clickhouse.user", "default")
	v.SetDefault("clickhouse.password", "")
	v.SetDefault("clickhouse.table", "cohort_rows")
	v.SetDefault("clickhouse.dial_timeout", "5s")

	v.SetDefault("sqlite.path", "./data/roas-board.db")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.master_key", "")
	v.SetDefault("auth.skip_paths", []string{"/health", "/metrics"})

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rps", 50.0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("dashboard.trailing_days", analytics.DefaultTrailingDays)
	v.SetDefault("dashboard.default_criterion", string(analytics.SortVolume))
	v.SetDefault("dashboard.default_view", string(analytics.ViewNetwork))
	v.SetDefault("dashboard.visible_columns", []string{})
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	switch c.Storage.Rows {
	case BackendMemory, BackendPostgres, BackendClickHouse:
	default:
		return fmt.Errorf("storage.rows must be one of: memory, postgres, clickhouse")
	}
	switch c.Storage.State {
	case BackendMemory, BackendPostgres, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("storage.state must be one of: memory, postgres, redis, sqlite")
	}
	if c.Storage.State == BackendSQLite && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required when storage.state is sqlite")
	}
	if c.Storage.Rows == BackendClickHouse {
		if len(c.ClickHouse.Addr) == 0 {
			return fmt.Errorf("clickhouse.addr must contain at least one address")
		}
		if c.ClickHouse.Table == "" {
			return fmt.Errorf("clickhouse.table is required")
		}
	}

	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("auth.master_key is required when auth is enabled")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate_limit.rps and rate_limit.burst must be positive when rate limiting is enabled")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: json, console")
	}

	if c.Dashboard.TrailingDays < 1 {
		return fmt.Errorf("dashboard.trailing_days must be at least 1")
	}
	if _, err := analytics.ParseSortCriterion(c.Dashboard.DefaultCriterion); err != nil {
		return fmt.Errorf("dashboard.default_criterion: %w", err)
	}
	if _, err := analytics.ParseView(c.Dashboard.DefaultView); err != nil {
		return fmt.Errorf("dashboard.default_view: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
