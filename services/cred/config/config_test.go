// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianCred/services/cred/address"
	"github.com/AleutianAI/AleutianCred/services/cred/attribution"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cred.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  port: 9000
  watch_dir: /tmp/graphs
  watch_debounce: 2s
storage:
  in_memory: true
  path: ""
logging:
  level: debug
attribution:
  strategy:
    type: PAGERANK
    version: 1
  parameters:
    alpha: 0.15
  scoring_prefixes:
    - [github, user]
    - [discord, member]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Server.WatchDebounce)
	assert.Equal(t, 32, cfg.Server.ResultCacheSize, "unset fields keep defaults")
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, attribution.StrategyPageRank, cfg.Attribution.Strategy.Type)
	assert.Equal(t, 0.15, cfg.Attribution.Parameters.Alpha)
	assert.Equal(t, attribution.DefaultParameters().MaxIterations, cfg.Attribution.Parameters.MaxIterations)

	run, err := cfg.RunConfig()
	require.NoError(t, err)
	assert.Equal(t, []address.NodeAddress{
		address.MustNode("github", "user"),
		address.MustNode("discord", "member"),
	}, run.Parameters.ScoringPrefixes)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad exporter", "telemetry:\n  trace_exporter: zipkin\n"},
		{"missing db path", "storage:\n  path: \"\"\n"},
		{"unknown strategy", "attribution:\n  strategy:\n    type: HITS\n"},
		{"unsupported version", "attribution:\n  strategy:\n    version: 7\n"},
		{"credrank sum", "attribution:\n  parameters:\n    credrank:\n      alpha: 0.6\n      beta: 0.6\n"},
		{"nul in prefix", "attribution:\n  scoring_prefixes:\n    - [\"a\\0b\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestWriteDefault_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cred.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
