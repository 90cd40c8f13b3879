package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "democrm.yaml"

// DefaultEnvFile is loaded into the process environment before the
// overlay. Variables already set are not overwritten.
const DefaultEnvFile = ".env"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML and .env files are optional; missing files are not an error.
func Load() (*Config, error) {
	if err := loadDotEnv(DefaultEnvFile); err != nil {
		return nil, fmt.Errorf("config env file: %w", err)
	}
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DEMOCRM_PORT")
	setString(&cfg.Server.CORSOrigin, "DEMOCRM_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "DEMOCRM_REQUEST_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "DEMOCRM_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "DEMOCRM_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "DEMOCRM_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "DEMOCRM_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "DEMOCRM_PG_HEALTH_CHECK")

	setBool(&cfg.NATS.Enabled, "DEMOCRM_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")

	setString(&cfg.Logging.Level, "DEMOCRM_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DEMOCRM_LOG_SERVICE")
	setString(&cfg.Logging.Format, "DEMOCRM_LOG_FORMAT")

	// Tenancy
	setString(&cfg.Tenancy.BaseDomain, "DEMOCRM_BASE_DOMAIN")
	setString(&cfg.Tenancy.HintHeader, "DEMOCRM_HINT_HEADER")
	setBool(&cfg.Tenancy.SubdomainHints, "DEMOCRM_SUBDOMAIN_HINTS")
	setDuration(&cfg.Tenancy.RestoreTimeout, "DEMOCRM_RESTORE_TIMEOUT")

	// Sweep
	setBool(&cfg.Sweep.Enabled, "DEMOCRM_SWEEP_ENABLED")
	setString(&cfg.Sweep.At, "DEMOCRM_SWEEP_AT")

	setBool(&cfg.OTEL.Enabled, "DEMOCRM_OTEL_ENABLED")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")

	setInt(&cfg.Auth.BcryptCost, "DEMOCRM_BCRYPT_COST")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats.enabled is set")
	}
	if cfg.Tenancy.BaseDomain == "" {
		return errors.New("tenancy.base_domain is required")
	}
	if cfg.Tenancy.HintHeader == "" {
		return errors.New("tenancy.hint_header is required")
	}
	if _, err := cfg.Sweep.Clock(); err != nil {
		return err
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return errors.New("auth.bcrypt_cost must be between 4 and 31")
	}
	return nil
}

// Clock parses At into an offset from midnight UTC.
func (s Sweep) Clock() (time.Duration, error) {
	t, err := time.Parse("15:04", s.At)
	if err != nil {
		return 0, fmt.Errorf("sweep.at must be HH:MM, got %q", s.At)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
