// Package config handles optimizer configuration via environment variables
// and YAML files.
//
// Environment variables use the OVGRAPH_ prefix and override defaults; a
// YAML file, when given, is loaded first and the environment applied on
// top. Validate before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables:
//   - OVGRAPH_MAX_PASSES=10
//   - OVGRAPH_RULES="fold-constants,add-zero"
//   - OVGRAPH_PROVENANCE_ENABLED=true
//   - OVGRAPH_DATA_DIR="./data"
//   - OVGRAPH_STORAGE_IN_MEMORY=false
//   - OVGRAPH_SYNC_WRITES=false
//   - OVGRAPH_VERBOSE=false
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds optimizer configuration.
type Config struct {
	// Passes controls the rewrite fixpoint loop.
	Passes PassConfig `yaml:"passes"`

	// Provenance controls lineage tracking.
	Provenance ProvenanceConfig `yaml:"provenance"`

	// Storage configures the snapshot/audit store.
	Storage StorageConfig `yaml:"storage"`

	// Logging configures CLI verbosity.
	Logging LoggingConfig `yaml:"logging"`
}

// PassConfig controls how the engine iterates.
type PassConfig struct {
	// MaxPasses bounds the fixpoint loop. The engine does not guarantee
	// convergence on its own; this cap does.
	MaxPasses int `yaml:"max_passes"`
	// Rules selects stock rules by name, in order. Empty means all.
	Rules []string `yaml:"rules"`
}

// ProvenanceConfig controls lineage tracking.
type ProvenanceConfig struct {
	// Enabled switches tag propagation on. When off, replacements perform
	// surgery only.
	Enabled bool `yaml:"enabled"`
}

// StorageConfig configures the badger-backed store.
type StorageConfig struct {
	DataDir    string `yaml:"data_dir"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// LoggingConfig configures CLI logging.
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Passes:     PassConfig{MaxPasses: 10},
		Provenance: ProvenanceConfig{Enabled: true},
		Storage:    StorageConfig{DataDir: "./data"},
	}
}

// LoadFromEnv builds a Config from defaults overridden by OVGRAPH_*
// environment variables.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML config file and applies OVGRAPH_* environment
// variables on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OVGRAPH_MAX_PASSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Passes.MaxPasses = n
		}
	}
	if v := os.Getenv("OVGRAPH_RULES"); v != "" {
		c.Passes.Rules = splitList(v)
	}
	if v := os.Getenv("OVGRAPH_PROVENANCE_ENABLED"); v != "" {
		c.Provenance.Enabled = parseBool(v, c.Provenance.Enabled)
	}
	if v := os.Getenv("OVGRAPH_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("OVGRAPH_STORAGE_IN_MEMORY"); v != "" {
		c.Storage.InMemory = parseBool(v, c.Storage.InMemory)
	}
	if v := os.Getenv("OVGRAPH_SYNC_WRITES"); v != "" {
		c.Storage.SyncWrites = parseBool(v, c.Storage.SyncWrites)
	}
	if v := os.Getenv("OVGRAPH_VERBOSE"); v != "" {
		c.Logging.Verbose = parseBool(v, c.Logging.Verbose)
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Passes.MaxPasses < 1 {
		return fmt.Errorf("passes.max_passes must be >= 1, got %d", c.Passes.MaxPasses)
	}
	if !c.Storage.InMemory && c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir required unless storage.in_memory")
	}
	return nil
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
