// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the bridge's configuration.
//
// The bootstrap config is a single YAML file specified by the
// RELAYDESK_CONFIG environment variable or the --config flag. There
// are no fallbacks or automatic discovery: configuration stays
// deterministic and auditable.
//
// Per-instance feature toggles and message templates live in a
// settings.json inside each instance's storage root. Settings files
// may carry comments and trailing commas (JSONC) so operators can
// annotate their toggles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration for the bridge process.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Bridge configures engine-wide behavior.
	Bridge BridgeConfig `yaml:"bridge"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for all instance storage roots.
	Root string `yaml:"root"`
}

// BridgeConfig configures engine-wide behavior.
type BridgeConfig struct {
	// TicketCategory is the ticket-platform category under which
	// ticket channels are created.
	TicketCategory string `yaml:"ticket_category"`

	// DedupJournalLimit bounds the per-instance seen-event journal.
	// Zero uses the built-in default.
	DedupJournalLimit int `yaml:"dedup_journal_limit"`
}

// Default returns the default configuration, used as a base before
// the config file is merged in. The config file is still required —
// the defaults exist to give every field a sensible zero value.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Paths: PathsConfig{
			Root: filepath.Join(homeDir, ".local", "share", "relaydesk"),
		},
	}
}

// Load loads configuration from the RELAYDESK_CONFIG environment
// variable. Fails if the variable is not set — there is no fallback.
func Load() (*Config, error) {
	configPath := os.Getenv("RELAYDESK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("RELAYDESK_CONFIG environment variable not set; " +
			"set it to the path of your relaydesk.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// the defaults. Environment variables do not override config values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error
	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	if c.Bridge.DedupJournalLimit < 0 {
		errs = append(errs, fmt.Errorf("bridge.dedup_journal_limit must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	if c.Paths.Root == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.Root, 0755); err != nil {
		return fmt.Errorf("config: creating %s: %w", c.Paths.Root, err)
	}
	return nil
}
