package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Save writes cfg to path as YAML, creating parent directories as needed.
// It is the write-side counterpart to Load: a node started with defaults
// and environment overrides can persist the effective config for the next
// restart, or an operator can dump a config to edit and reload by hand.
func Save(cfg RuntimeConfig, path string) error {
	encoded, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode runtime config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		return fmt.Errorf("write runtime config %q: %w", path, err)
	}
	return nil
}
