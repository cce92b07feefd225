// Package config loads scalegate settings from defaults, an optional YAML
// profile, .env files and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// Config holds client configuration.
type Config struct {
	EngineURL         string
	EngineToken       string
	EngineCommand     []string
	EngineDir         string
	VersionConstraint string
	Timeout           time.Duration
	RPS               float64
	Burst             int

	Sector       string
	Actor        contracts.Actor
	AckMinLength int
	AckRule      string

	LogLevel  string
	LogFormat string

	DatabaseURL string
	RedisAddr   string

	OTelEnabled  bool
	OTelEndpoint string

	ExportTarget     string
	ExportS3Endpoint string
	ExportS3Region   string

	ProfilePath string
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		EngineURL:         "http://127.0.0.1:8000",
		VersionConstraint: ">=1.0.0, <2.0.0",
		Timeout:           30 * time.Second,
		Burst:             1,
		Sector:            contracts.DefaultSector,
		Actor:             contracts.Actor{Role: contracts.RoleOperator},
		AckMinLength:      10,
		LogLevel:          "INFO",
		LogFormat:         "text",
		OTelEndpoint:      "localhost:4317",
		ExportTarget:      "file://exports",
		ExportS3Region:    "us-east-1",
	}
}

// Load reads .env files (".env" when none are given; missing files are
// ignored), then applies the profile named by SCALEGATE_PROFILE and finally
// the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := Defaults()
	if path := os.Getenv("SCALEGATE_PROFILE"); path != "" {
		p, err := LoadProfile(path)
		if err != nil {
			return nil, err
		}
		p.Apply(cfg)
		cfg.ProfilePath = path
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	str("SCALEGATE_ENGINE_URL", &c.EngineURL)
	str("SCALEGATE_ENGINE_TOKEN", &c.EngineToken)
	str("SCALEGATE_ENGINE_DIR", &c.EngineDir)
	str("SCALEGATE_ENGINE_VERSION", &c.VersionConstraint)
	str("SCALEGATE_SECTOR", &c.Sector)
	str("SCALEGATE_ACTOR_NAME", &c.Actor.Name)
	str("SCALEGATE_ACK_RULE", &c.AckRule)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_ADDR", &c.RedisAddr)
	str("OTEL_ENDPOINT", &c.OTelEndpoint)
	str("EXPORT_TARGET", &c.ExportTarget)
	str("EXPORT_S3_ENDPOINT", &c.ExportS3Endpoint)
	str("EXPORT_S3_REGION", &c.ExportS3Region)

	if v := os.Getenv("SCALEGATE_ENGINE_COMMAND"); v != "" {
		c.EngineCommand = strings.Fields(v)
	}
	if v := os.Getenv("SCALEGATE_ACTOR_ROLE"); v != "" {
		role, err := parseRole(v)
		if err != nil {
			return err
		}
		c.Actor.Role = role
	}
	if v := os.Getenv("SCALEGATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SCALEGATE_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("SCALEGATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SCALEGATE_RPS: %w", err)
		}
		c.RPS = f
	}
	if v := os.Getenv("SCALEGATE_ACK_MIN_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCALEGATE_ACK_MIN_LENGTH: %w", err)
		}
		c.AckMinLength = n
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		c.OTelEnabled = v == "true" || v == "1"
	}
	return nil
}

func parseRole(s string) (contracts.ActorRole, error) {
	switch contracts.ActorRole(strings.ToUpper(strings.TrimSpace(s))) {
	case contracts.RoleOperator:
		return contracts.RoleOperator, nil
	case contracts.RoleAdmin:
		return contracts.RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown actor role %q", s)
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.EngineURL == "" {
		errs = append(errs, errors.New("engine url is required"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.RPS < 0 {
		errs = append(errs, errors.New("rps must not be negative"))
	}
	if c.AckMinLength < 1 {
		errs = append(errs, errors.New("ack min length must be at least 1"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
