package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Sane(t *testing.T) {
	cfg := Default()

	if cfg.Embedding.Provider != "local" {
		t.Errorf("expected local provider, got %s", cfg.Embedding.Provider)
	}
	if cfg.Ranking.Vector != 0.7 || cfg.Ranking.Keyword != 0.3 {
		t.Errorf("unexpected default weights: %+v", cfg.Ranking)
	}
	if cfg.Sync.Workers < 2 {
		t.Errorf("pool needs at least 2 workers to reserve a query slot, got %d", cfg.Sync.Workers)
	}
	if cfg.Sync.SweepInterval() != 10*time.Minute {
		t.Errorf("unexpected sweep interval: %v", cfg.Sync.SweepInterval())
	}
}

func TestSaveAndLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.DataDir = "/custom/data"
	cfg.Embedding.Provider = "ollama"
	cfg.Embedding.Endpoint = "http://localhost:11434"
	cfg.Ranking.ExactMatchBoost = 0.5

	if err := Save(cfg, path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.DataDir != "/custom/data" {
		t.Errorf("DataDir = %s", loaded.DataDir)
	}
	if loaded.Embedding.Provider != "ollama" {
		t.Errorf("Provider = %s", loaded.Embedding.Provider)
	}
	if loaded.Ranking.ExactMatchBoost != 0.5 {
		t.Errorf("ExactMatchBoost = %f", loaded.Ranking.ExactMatchBoost)
	}
}

func TestLoadFrom_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"dataDir": "/only/this"}`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/only/this" {
		t.Errorf("DataDir = %s", cfg.DataDir)
	}
	// Unspecified fields keep their defaults.
	if cfg.Ranking.Vector != 0.7 {
		t.Errorf("Vector weight = %f, want default", cfg.Ranking.Vector)
	}
}

func TestLoadFrom_NotFound(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if _, ok := err.(*InvalidError); !ok {
		t.Fatalf("expected InvalidError, got %T: %v", err, err)
	}
}

func TestDatabasePath_UsesDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/lib/mcpgw"

	path, err := cfg.DatabasePath()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join("/var/lib/mcpgw", "registry.db") {
		t.Errorf("unexpected path: %s", path)
	}
}
