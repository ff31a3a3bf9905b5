// Package personality provides the active personality profile the prompt
// composer folds into image prompts. Profiles are free text, typically
// authored in the config file next to the chat personas.
package personality

import (
	"sync"

	"go.uber.org/zap"
)

// Profile carries the free-text styling a personality contributes to image
// generation. Empty fields leave the composer defaults untouched.
type Profile struct {
	Name                       string   `json:"name" yaml:"name"`
	BaseCharacterIdentity      string   `json:"base_character_identity" yaml:"base_character_identity"`
	StyleKeywords              string   `json:"style_keywords" yaml:"style_keywords"`
	QualityKeywords            string   `json:"quality_keywords" yaml:"quality_keywords"`
	PreferredClothingStyle     string   `json:"preferred_clothing_style" yaml:"preferred_clothing_style"`
	TypicalEnvironmentKeywords string   `json:"typical_environment_keywords" yaml:"typical_environment_keywords"`
	ArtStyleModifiers          []string `json:"art_style_modifiers" yaml:"art_style_modifiers"`
}

// Source yields the personality currently in effect. Active may return
// (nil, nil) when no personality is configured; callers treat errors as
// "no personality" after logging.
type Source interface {
	Active() (*Profile, error)
}

// FileConfig is the personality section of the config file.
type FileConfig struct {
	Active   string             `json:"active" yaml:"active"`
	Profiles map[string]Profile `json:"profiles" yaml:"profiles"`
}

// ConfigSource is a hot-reloadable Source backed by file config.
type ConfigSource struct {
	log *zap.Logger

	mu       sync.RWMutex
	active   string
	profiles map[string]Profile
}

func NewConfigSource(log *zap.Logger, fc FileConfig) *ConfigSource {
	s := &ConfigSource{log: log}
	s.Update(fc)
	return s
}

// Update swaps in a freshly loaded config section. Called from the config
// watcher callback.
func (s *ConfigSource) Update(fc FileConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = fc.Active
	s.profiles = make(map[string]Profile, len(fc.Profiles))
	for name, p := range fc.Profiles {
		if p.Name == "" {
			p.Name = name
		}
		s.profiles[name] = p
	}
}

// SetActive switches the active profile by name. Unknown names are allowed;
// Active simply reports no personality until the name resolves.
func (s *ConfigSource) SetActive(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = name
}

func (s *ConfigSource) Active() (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == "" {
		return nil, nil
	}
	p, ok := s.profiles[s.active]
	if !ok {
		s.log.Debug("Active personality not found in profiles", zap.String("name", s.active))
		return nil, nil
	}
	return &p, nil
}
