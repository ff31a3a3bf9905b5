// Package config provides configuration management for the engine
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"companion.arpa/engine/avatar"
	"companion.arpa/engine/personality"
	"companion.arpa/engine/prompt"
)

// FileConfig represents the entire configuration file structure
type FileConfig struct {
	Personality personality.FileConfig `json:"personality" yaml:"personality"`
	Prompt      prompt.FileConfig      `json:"prompt" yaml:"prompt"`
	Avatar      avatar.FileConfig      `json:"avatar" yaml:"avatar"`
}

// ReadConfig reads and parses a config file into the provided struct
func ReadConfig(filePath string, v any) error {
	ext := filepath.Ext(filePath)

	content, err := os.ReadFile(filePath) // #nosec G304 -- filePath is controlled by configuration
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(content, v); err != nil {
			return fmt.Errorf("unmarshal json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, v); err != nil {
			return fmt.Errorf("unmarshal yaml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}
