// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

// Package config loads and validates Benchtop configuration via Koanf v2
// with layered sources (highest priority wins): environment variables,
// YAML config file, built-in defaults.
package config

import "time"

// Config is the root configuration for the Benchtop server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Cache   CacheConfig   `koanf:"cache"`
	Data    DataConfig    `koanf:"data"`
	Auth    AuthConfig    `koanf:"auth"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	// TTLSeconds is the entry lifetime before a forced reload.
	TTLSeconds int `koanf:"ttl_seconds"`

	// MaxItems is the hard cap on entry count per value type.
	MaxItems int `koanf:"max_items"`

	// MaxSizeBytes is the hard cap on the summed size estimate.
	MaxSizeBytes int64 `koanf:"max_size_bytes"`

	// CleanupInterval is how often the sweeper removes expired entries.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// WarmRatePerSec throttles forced loads during cache warming;
	// WarmBurst is the limiter's burst allowance.
	WarmRatePerSec float64 `koanf:"warm_rate_per_sec"`
	WarmBurst      int     `koanf:"warm_burst"`
}

// TTL returns the entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// DataConfig holds artifact storage settings.
type DataConfig struct {
	// Dir is the directory containing result artifacts. Sources outside
	// Dir are rejected by the HTTP surface.
	Dir string `koanf:"dir"`

	// Watch enables fsnotify-driven invalidation of sources under Dir.
	Watch bool `koanf:"watch"`

	// MaxMemory and Threads tune the DuckDB reader. Threads 0 means use
	// runtime.NumCPU().
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// AuthConfig guards the mutating cache endpoints.
type AuthConfig struct {
	// Enabled turns on JWT bearer authentication for clear/warm.
	Enabled bool `koanf:"enabled"`

	// JWTSecret signs and verifies tokens (HMAC-SHA256). Required when
	// Enabled; minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL bounds minted token lifetime.
	TokenTTL time.Duration `koanf:"token_ttl"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8713,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Cache: CacheConfig{
			TTLSeconds:      300,
			MaxItems:        256,
			MaxSizeBytes:    512 << 20, // 512MB
			CleanupInterval: 5 * time.Minute,
			WarmRatePerSec:  4,
			WarmBurst:       2,
		},
		Data: DataConfig{
			Dir:       "/data/results",
			Watch:     true,
			MaxMemory: "1GB",
			Threads:   0,
		},
		Auth: AuthConfig{
			Enabled:  false,
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
