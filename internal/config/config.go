/*
Package config handles loading and saving the registry configuration.

Configuration is stored as JSON in ~/.mcpgw.json. All tuning constants
of the discovery engine (ranking weights, fetch multipliers, pool
sizing, embedding provider) live here; none are hard-coded behavioral
contracts.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcpgw/registry/internal/embed"
	"github.com/mcpgw/registry/internal/engine"
	"github.com/mcpgw/registry/internal/search"
)

// Config is the root configuration structure.
type Config struct {
	// DataDir holds the SQLite database. Defaults to ~/.mcpgw.
	DataDir string `json:"dataDir,omitempty"`

	// Embedding configures the embedding provider.
	Embedding embed.Settings `json:"embedding"`

	// Ranking holds the hybrid scoring weights.
	Ranking search.Weights `json:"ranking"`

	// Fetch holds the engine's candidate-fetch tuning.
	Fetch engine.Options `json:"fetch"`

	// Sync configures the index synchronizer.
	Sync SyncSettings `json:"sync"`

	// API configures the HTTP surface.
	API APISettings `json:"api"`
}

// SyncSettings tunes the index synchronizer.
type SyncSettings struct {
	// Workers is the embedding pool size; one slot is always reserved
	// for interactive queries.
	Workers int `json:"workers,omitempty"`

	// QueueDepth caps pending background re-embed tasks.
	QueueDepth int `json:"queueDepth,omitempty"`

	// SweepMinutes is the period of the self-healing reconciliation.
	SweepMinutes int `json:"sweepMinutes,omitempty"`
}

// APISettings configures the HTTP API listener.
type APISettings struct {
	// Addr is the listen address for 'serve --http'.
	Addr string `json:"addr,omitempty"`
}

// SweepInterval returns the reconciliation period.
func (s SyncSettings) SweepInterval() time.Duration {
	return time.Duration(s.SweepMinutes) * time.Minute
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Embedding: embed.DefaultSettings(),
		Ranking:   search.DefaultWeights(),
		Fetch:     engine.DefaultOptions(),
		Sync: SyncSettings{
			Workers:      3,
			QueueDepth:   256,
			SweepMinutes: 10,
		},
		API: APISettings{
			Addr: "127.0.0.1:7860",
		},
	}
}

// DefaultConfigPath returns the path to ~/.mcpgw.json.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".mcpgw.json"), nil
}

// DatabasePath returns the SQLite path under the configured data dir.
func (c *Config) DatabasePath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".mcpgw")
	}
	return filepath.Join(dir, "registry.db"), nil
}
