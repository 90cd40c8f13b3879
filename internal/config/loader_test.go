package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Tenancy.HintHeader != "company" {
		t.Errorf("expected hint header company, got %s", cfg.Tenancy.HintHeader)
	}
	if cfg.Sweep.At != "00:00" {
		t.Errorf("expected sweep at midnight, got %s", cfg.Sweep.At)
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
postgres:
  max_conns: 20
logging:
  level: "debug"
tenancy:
  base_domain: "crm.example.com"
  subdomain_hints: true
sweep:
  at: "02:30"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "http://example.com" {
		t.Errorf("expected cors http://example.com, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Tenancy.BaseDomain != "crm.example.com" || !cfg.Tenancy.SubdomainHints {
		t.Errorf("unexpected tenancy config %+v", cfg.Tenancy)
	}
	// Unchanged fields keep defaults
	if cfg.Tenancy.HintHeader != "company" {
		t.Errorf("expected default hint header, got %s", cfg.Tenancy.HintHeader)
	}
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, path); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("DEMOCRM_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("DEMOCRM_PG_MAX_CONNS", "25")
	t.Setenv("DEMOCRM_LOG_LEVEL", "warn")
	t.Setenv("DEMOCRM_HINT_HEADER", "X-Company")
	t.Setenv("DEMOCRM_RESTORE_TIMEOUT", "2s")
	t.Setenv("DEMOCRM_NATS_ENABLED", "true")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("unexpected DSN %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Tenancy.HintHeader != "X-Company" {
		t.Errorf("expected hint header X-Company, got %s", cfg.Tenancy.HintHeader)
	}
	if cfg.Tenancy.RestoreTimeout != 2*time.Second {
		t.Errorf("expected restore timeout 2s, got %v", cfg.Tenancy.RestoreTimeout)
	}
	if !cfg.NATS.Enabled {
		t.Error("expected nats enabled")
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()

	t.Setenv("DEMOCRM_PG_MAX_CONNS", "lots")
	t.Setenv("DEMOCRM_SWEEP_ENABLED", "maybe")

	loadEnv(&cfg)

	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("invalid int should keep default, got %d", cfg.Postgres.MaxConns)
	}
	if !cfg.Sweep.Enabled {
		t.Error("invalid bool should keep default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = "" }},
		{"missing dsn", func(c *Config) { c.Postgres.DSN = "" }},
		{"zero max conns", func(c *Config) { c.Postgres.MaxConns = 0 }},
		{"nats without url", func(c *Config) { c.NATS.Enabled = true; c.NATS.URL = "" }},
		{"missing base domain", func(c *Config) { c.Tenancy.BaseDomain = "" }},
		{"missing hint header", func(c *Config) { c.Tenancy.HintHeader = "" }},
		{"bad sweep time", func(c *Config) { c.Sweep.At = "midnight" }},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSweepClock(t *testing.T) {
	d, err := Sweep{At: "02:30"}.Clock()
	if err != nil {
		t.Fatal(err)
	}
	if d != 2*time.Hour+30*time.Minute {
		t.Errorf("clock = %v", d)
	}
}
