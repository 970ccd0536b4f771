// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the YAML configuration shared by the cred CLI and
// service.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded configuration fails
// validation.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   telemetry.Config  `yaml:"telemetry"`
	Attribution AttributionConfig `yaml:"attribution"`
}

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	// Port is the listen port.
	Port int `yaml:"port" validate:"gt=0,lte=65535"`

	// ComputeRateLimit is the sustained compute requests per second.
	// Zero disables rate limiting.
	ComputeRateLimit float64 `yaml:"compute_rate_limit" validate:"gte=0"`

	// ComputeBurst is the compute request burst size.
	ComputeBurst int `yaml:"compute_burst" validate:"gte=0"`

	// ResultCacheSize is the number of decoded results kept in memory.
	ResultCacheSize int `yaml:"result_cache_size" validate:"gt=0"`

	// WatchDir, when set, is watched for weighted-graph JSON files that
	// are loaded into the store.
	WatchDir string `yaml:"watch_dir"`

	// WatchDebounce coalesces bursts of file events.
	WatchDebounce time.Duration `yaml:"watch_debounce" validate:"gte=0"`
}

// StorageConfig configures the Badger store.
type StorageConfig struct {
	// Path is the database directory.
	Path string `yaml:"path" validate:"required_without=InMemory"`

	// InMemory keeps the store in RAM. Nothing survives a restart.
	InMemory bool `yaml:"in_memory"`

	// GCInterval is how often value log GC runs.
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// LogDir, when set, receives a JSON log file per run.
	LogDir string `yaml:"log_dir"`

	// JSON switches stderr output from text to JSON.
	JSON bool `yaml:"json"`
}

// AttributionConfig selects the default strategy and parameters.
type AttributionConfig struct {
	Strategy   attribution.Strategy   `yaml:"strategy"`
	Parameters attribution.Parameters `yaml:"parameters"`

	// ScoringPrefixes are node address prefixes, each given as its parts.
	ScoringPrefixes [][]string `yaml:"scoring_prefixes"`
}

// DefaultConfig returns a configuration that serves on :8090 with a
// persistent store under ~/.cred.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Server: ServerConfig{
			Port:             8090,
			ComputeRateLimit: 2,
			ComputeBurst:     4,
			ResultCacheSize:  32,
			WatchDebounce:    500 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path:       filepath.Join(home, ".cred", "db"),
			GCInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
		Attribution: AttributionConfig{
			Strategy:        attribution.DefaultStrategy(),
			Parameters:      attribution.DefaultParameters(),
			ScoringPrefixes: [][]string{{"user"}},
		},
	}
}

// Load reads path over the defaults and validates the result. An empty
// path returns the validated defaults.
//
// Errors:
//
//	ErrInvalidConfig - a field fails validation
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and the cross-field attribution rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Attribution.Strategy.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Attribution.Parameters.CredRank.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Attribution.scoringPrefixes(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RunConfig converts the attribution section into a run
// configuration.
func (c Config) RunConfig() (attribution.Config, error) {
	prefixes, err := c.Attribution.scoringPrefixes()
	if err != nil {
		return attribution.Config{}, err
	}
	params := c.Attribution.Parameters
	params.ScoringPrefixes = prefixes
	return attribution.Config{Strategy: c.Attribution.Strategy, Parameters: params}, nil
}

func (a AttributionConfig) scoringPrefixes() ([]address.NodeAddress, error) {
	out := make([]address.NodeAddress, 0, len(a.ScoringPrefixes))
	for _, parts := range a.ScoringPrefixes {
		p, err := address.NodeFromParts(parts...)
		if err != nil {
			return nil, fmt.Errorf("scoring prefix %q: %w", parts, err)
		}
		out = append(out, p)
	}
	return out, nil
}
