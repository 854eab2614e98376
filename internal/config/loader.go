package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadFrom reads configuration from path with typed errors for the
// common failure modes.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{
				Path: path,
				Hint: "Run 'mcpgw init' to create a default configuration",
			}
		}
		return nil, fmt.Errorf("failed to access config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, &InvalidError{
			Path:    path,
			Message: fmt.Sprintf("JSON parse error: %v", err),
		}
	}
	return cfg, nil
}

// Load reads the configuration from the default path.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadOrDefault reads the configuration from the default path, falling
// back to defaults when no file exists yet.
func LoadOrDefault() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		if _, missing := err.(*NotFoundError); missing {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
