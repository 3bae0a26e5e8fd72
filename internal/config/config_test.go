package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Storage:   StorageConfig{Rows: BackendMemory, State: BackendMemory},
		Auth:      AuthConfig{Enabled: true, MasterKey: "secret"},
		RateLimit: RateLimitConfig{Enabled: true, RPS: 10, Burst: 5},
		Log:       LogConfig{Level: "info", Format: "json"},
		Dashboard: DashboardConfig{TrailingDays: 7, DefaultCriterion: "volume", DefaultView: "network"},
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  shutdown_timeout: 10s
storage:
  rows: postgres
  state: sqlite
sqlite:
  path: /tmp/board.db
auth:
  master_key: "test_key"
log:
  level: debug
  format: console
dashboard:
  trailing_days: 14
  default_criterion: roas_d7
  visible_columns:
    - installs
    - roas_d7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Unexpected shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Rows != BackendPostgres || cfg.Storage.State != BackendSQLite {
		t.Errorf("Unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Dashboard.TrailingDays != 14 || cfg.Dashboard.DefaultCriterion != "roas_d7" {
		t.Errorf("Unexpected dashboard: %+v", cfg.Dashboard)
	}
	if len(cfg.Dashboard.VisibleColumns) != 2 {
		t.Errorf("Expected 2 visible columns, got %d", len(cfg.Dashboard.VisibleColumns))
	}
	// untouched sections keep their defaults
	if cfg.Database.Port != 5432 || cfg.Redis.KeyPrefix != "roasboard:" {
		t.Errorf("Defaults not applied: db port %d, redis prefix %q", cfg.Database.Port, cfg.Redis.KeyPrefix)
	}
	if cfg.Dashboard.DefaultView != "network" {
		t.Errorf("Unexpected default view: %q", cfg.Dashboard.DefaultView)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ROAS_BOARD_AUTH_MASTER_KEY", "from-env")
	t.Setenv("ROAS_BOARD_SERVER_ADDR", ":7070")
	t.Setenv("ROAS_BOARD_RATE_LIMIT_RPS", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.MasterKey != "from-env" {
		t.Errorf("Unexpected master key: %q", cfg.Auth.MasterKey)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("Unexpected addr: %q", cfg.Server.Addr)
	}
	if cfg.RateLimit.RPS != 5 {
		t.Errorf("Unexpected rps: %v", cfg.RateLimit.RPS)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"auth without key", func(c *Config) { c.Auth.MasterKey = "" }, "auth.master_key"},
		{"unknown row backend", func(c *Config) { c.Storage.Rows = "redis" }, "storage.rows"},
		{"unknown state backend", func(c *Config) { c.Storage.State = "clickhouse" }, "storage.state"},
		{"sqlite without path", func(c *Config) { c.Storage.State = BackendSQLite }, "sqlite.path"},
		{"clickhouse without table", func(c *Config) {
			c.Storage.Rows = BackendClickHouse
			c.ClickHouse.Addr = []string{"localhost:9000"}
		}, "clickhouse.table"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad rate limit", func(c *Config) { c.RateLimit.Burst = 0 }, "rate_limit"},
		{"zero trailing days", func(c *Config) { c.Dashboard.TrailingDays = 0 }, "dashboard.trailing_days"},
		{"unknown criterion", func(c *Config) { c.Dashboard.DefaultCriterion = "profit" }, "dashboard.default_criterion"},
		{"unknown view", func(c *Config) { c.Dashboard.DefaultView = "campaign" }, "dashboard.default_view"},
	}

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateAuthDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth = AuthConfig{Enabled: false}
	if err := cfg.Validate(); err != nil {
		t.Errorf("auth disabled should not need a key: %v", err)
	}
}
