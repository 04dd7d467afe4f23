// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package config defines the daemon configuration and its layered
// loading: built-in defaults, an optional YAML file, then environment
// variables, with environment taking precedence.
package config

import (
	"fmt"
	"time"

	"github.com/grimoire-interactive/daybook/internal/validation"
)

// Config is the root configuration for the daybook daemon.
type Config struct {
	Storage    StorageConfig    `koanf:"storage"`
	Server     ServerConfig     `koanf:"server"`
	Remote     RemoteConfig     `koanf:"remote"`
	Encounters EncountersConfig `koanf:"encounters"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// StorageConfig controls where and how save data is persisted.
type StorageConfig struct {
	// Dir is the root data directory. The selected engine keeps its
	// files under this directory alongside the ENGINE marker.
	Dir string `koanf:"dir" validate:"required"`

	// Engine pins the storage engine. "auto" probes in ranked order.
	Engine string `koanf:"engine" validate:"oneof=auto badger sqlite"`
}

// ServerConfig controls the local HTTP API the game UI talks to.
type ServerConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// RemoteConfig controls the optional save-API backend used for slot
// upload/download and encounter data.
type RemoteConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `koanf:"timeout"`
}

// EncountersConfig controls the reference-data cache.
type EncountersConfig struct {
	// Version tags the persisted encounter payload; bumping it forces
	// a refetch on next load.
	Version int           `koanf:"version" validate:"min=1"`
	TTL     time.Duration `koanf:"ttl"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for structural and cross-field
// errors. Called by LoadWithKoanf after all layers are merged.
func (c *Config) Validate() error {
	if errs := validation.ValidateStruct(c); errs != nil {
		return errs
	}
	if c.Remote.Enabled && c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required when remote.enabled is true")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive")
	}
	return nil
}
