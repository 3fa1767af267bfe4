// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

// Package config loads Driftline configuration with Koanf v2.
//
// Sources are layered in priority order: built-in defaults, then an
// optional YAML file, then DRIFTLINE_-prefixed environment variables
// (DRIFTLINE_SERVER_PORT=9090 overrides server.port).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "DRIFTLINE_"

// DefaultConfigPaths lists where config files are searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/driftline/config.yaml",
}

// Config is the root configuration for driftlined.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Channels  ChannelsConfig  `koanf:"channels"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig configures the durable store backing the predictive record.
type StorageConfig struct {
	// Path is the BadgerDB directory.
	Path string `koanf:"path"`
}

// TelemetryConfig configures the telemetry and subscription providers.
type TelemetryConfig struct {
	URL             string        `koanf:"url"`
	SubscriptionURL string        `koanf:"subscriptionurl"`
	Timeout         time.Duration `koanf:"timeout"`
}

// ChannelsConfig configures the outbound intervention collaborators.
// Empty URLs disable dispatch through that channel (log-only).
type ChannelsConfig struct {
	PushURL    string        `koanf:"pushurl"`
	LoyaltyURL string        `koanf:"loyaltyurl"`
	BillingURL string        `koanf:"billingurl"`
	Timeout    time.Duration `koanf:"timeout"`
}

// SchedulerConfig configures the background refresh tasks.
type SchedulerConfig struct {
	// ChurnInterval is the full churn-profile refresh cadence.
	ChurnInterval time.Duration `koanf:"churninterval"`
	// EngagementInterval is the engagement-prediction refresh cadence.
	EngagementInterval time.Duration `koanf:"engagementinterval"`
	// ReconcileInterval is the intervention-outcome reconciliation cadence.
	ReconcileInterval time.Duration `koanf:"reconcileinterval"`
	// FollowUpWindow is how long an intervention stays pending before
	// reconciliation resolves its outcome.
	FollowUpWindow time.Duration `koanf:"followupwindow"`
}

// APIConfig configures request limits on the HTTP surface.
type APIConfig struct {
	RateLimitRequests int           `koanf:"ratelimitrequests"`
	RateLimitWindow   time.Duration `koanf:"ratelimitwindow"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8720,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path: "/data/driftline",
		},
		Telemetry: TelemetryConfig{
			URL:             "",
			SubscriptionURL: "",
			Timeout:         10 * time.Second,
		},
		Channels: ChannelsConfig{
			Timeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			ChurnInterval:      24 * time.Hour,
			EngagementInterval: 6 * time.Hour,
			ReconcileInterval:  time.Hour,
			FollowUpWindow:     72 * time.Hour,
		},
		API: APIConfig{
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides. An empty path searches DefaultConfigPaths.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if c.Scheduler.ChurnInterval <= 0 {
		return fmt.Errorf("scheduler churn interval must be positive")
	}
	if c.Scheduler.EngagementInterval <= 0 {
		return fmt.Errorf("scheduler engagement interval must be positive")
	}
	if c.Scheduler.ReconcileInterval <= 0 {
		return fmt.Errorf("scheduler reconcile interval must be positive")
	}
	if c.Scheduler.FollowUpWindow <= 0 {
		return fmt.Errorf("scheduler follow-up window must be positive")
	}
	if c.Telemetry.Timeout <= 0 {
		return fmt.Errorf("telemetry timeout must be positive")
	}
	if c.Channels.Timeout <= 0 {
		return fmt.Errorf("channels timeout must be positive")
	}
	return nil
}
