package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Integration tests that exercise the full LoadFrom pipeline:
// defaults < YAML < environment variables.

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
tenancy:
  base_domain: "yaml.example.com"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("DEMOCRM_PORT", "7070")
	t.Setenv("DEMOCRM_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
	if cfg.Tenancy.BaseDomain != "yaml.example.com" {
		t.Errorf("YAML should override defaults: got base domain %q", cfg.Tenancy.BaseDomain)
	}
}

func TestLoadFrom_ValidationFailure(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte("sweep:\n  at: \"25:99\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected validation error for bad sweep time")
	}
}

func TestLoadDotEnv(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("DEMOCRM_BASE_DOMAIN=dotenv.example.com\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Register cleanup for the variable godotenv is about to set.
	t.Setenv("DEMOCRM_BASE_DOMAIN", "")
	_ = os.Unsetenv("DEMOCRM_BASE_DOMAIN")

	if err := loadDotEnv(envPath); err != nil {
		t.Fatalf("loadDotEnv: %v", err)
	}
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tenancy.BaseDomain != "dotenv.example.com" {
		t.Errorf("base domain = %q, want value from .env", cfg.Tenancy.BaseDomain)
	}
}

func TestLoadDotEnvMissing(t *testing.T) {
	if err := loadDotEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing .env should not error, got %v", err)
	}
}
