package avatar

// FileConfig is the hot-reloadable file section for generation defaults.
// Pointer fields distinguish "unset" from an explicit zero value.
type FileConfig struct {
	Style         *string  `json:"style" yaml:"style"`
	Background    *string  `json:"background" yaml:"background"`
	Lighting      *string  `json:"lighting" yaml:"lighting"`
	Quality       *string  `json:"quality" yaml:"quality"`
	Width         *int     `json:"width" yaml:"width"`
	Height        *int     `json:"height" yaml:"height"`
	Steps         *int     `json:"steps" yaml:"steps"`
	Guidance      *float64 `json:"guidance" yaml:"guidance"`
	ArchiveKeep   *int     `json:"archive_keep" yaml:"archive_keep"`
	CleanupChance *float64 `json:"cleanup_chance" yaml:"cleanup_chance"`
}
