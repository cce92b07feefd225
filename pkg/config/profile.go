package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// Profile is a site configuration file. Zero values leave defaults alone.
type Profile struct {
	Sector string          `yaml:"sector"`
	Actor  contracts.Actor `yaml:"actor"`
	Ack    struct {
		MinLength int    `yaml:"min_length"`
		Rule      string `yaml:"rule"`
	} `yaml:"ack"`
	Engine struct {
		URL               string   `yaml:"url"`
		Command           []string `yaml:"command"`
		Dir               string   `yaml:"dir"`
		VersionConstraint string   `yaml:"version_constraint"`
		Timeout           string   `yaml:"timeout"`
		RPS               float64  `yaml:"rps"`
	} `yaml:"engine"`
	Export struct {
		Target     string `yaml:"target"`
		S3Endpoint string `yaml:"s3_endpoint"`
		S3Region   string `yaml:"s3_region"`
	} `yaml:"export"`
	DatabaseURL string `yaml:"database_url"`
	RedisAddr   string `yaml:"redis_addr"`
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// LoadProfile reads a YAML profile.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if p.Actor.Role != "" {
		role, err := parseRole(string(p.Actor.Role))
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", path, err)
		}
		p.Actor.Role = role
	}
	if p.Engine.Timeout != "" {
		if _, err := parseDuration(p.Engine.Timeout); err != nil {
			return nil, fmt.Errorf("profile %q: engine.timeout: %w", path, err)
		}
	}
	return &p, nil
}

// Apply overlays the non-zero profile fields onto cfg.
func (p *Profile) Apply(cfg *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Sector, p.Sector)
	set(&cfg.Actor.Name, p.Actor.Name)
	if p.Actor.Role != "" {
		cfg.Actor.Role = p.Actor.Role
	}
	if p.Ack.MinLength > 0 {
		cfg.AckMinLength = p.Ack.MinLength
	}
	set(&cfg.AckRule, p.Ack.Rule)
	set(&cfg.EngineURL, p.Engine.URL)
	if len(p.Engine.Command) > 0 {
		cfg.EngineCommand = append([]string(nil), p.Engine.Command...)
	}
	set(&cfg.EngineDir, p.Engine.Dir)
	set(&cfg.VersionConstraint, p.Engine.VersionConstraint)
	if d, err := parseDuration(p.Engine.Timeout); err == nil && d > 0 {
		cfg.Timeout = d
	}
	if p.Engine.RPS > 0 {
		cfg.RPS = p.Engine.RPS
	}
	set(&cfg.ExportTarget, p.Export.Target)
	set(&cfg.ExportS3Endpoint, p.Export.S3Endpoint)
	set(&cfg.ExportS3Region, p.Export.S3Region)
	set(&cfg.DatabaseURL, p.DatabaseURL)
	set(&cfg.RedisAddr, p.RedisAddr)
}
