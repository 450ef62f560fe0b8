package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// cliConfig is the optional on-disk config file for the CLI, loaded before
// the subcommand's flags are parsed. No flag overrides its fields.
type cliConfig struct {
	Path          string `json:"path"`
	Engine        string `json:"engine,omitempty"`
	FlushIntervalMS int  `json:"flush_interval_ms,omitempty"` //nolint:tagliatelle
	HighWaterMark int    `json:"high_water_mark,omitempty"`   //nolint:tagliatelle
}

// defaultCLIConfig matches flaxkv.Config's own defaults so an absent
// config file behaves identically to flaxkv.Open(flaxkv.Config{Path: ...}).
func defaultCLIConfig() cliConfig {
	return cliConfig{
		Path:   "/tmp/flaxkv-playground",
		Engine: "mmap_btree",
	}
}

// loadCLIConfig reads a JSON-with-comments config file at path, if it
// exists. A missing file is not an error: the defaults are returned
// unchanged.
func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return cliConfig{}, fmt.Errorf("read config %q: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return cliConfig{}, fmt.Errorf("invalid JSONC in %q: %w", path, err)
	}

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return cliConfig{}, fmt.Errorf("invalid JSON in %q: %w", path, err)
	}

	return cfg, nil
}
