package prompt

// FileConfig is the hot-reloadable file section for prompt composition.
// Pointer fields distinguish "unset" from an explicit zero value.
type FileConfig struct {
	CharacterIdentity *string        `json:"character_identity" yaml:"character_identity"`
	StyleKeywords     *string        `json:"style_keywords" yaml:"style_keywords"`
	QualityKeywords   *string        `json:"quality_keywords" yaml:"quality_keywords"`
	Meta              MetaFileConfig `json:"meta" yaml:"meta"`
}

type MetaFileConfig struct {
	Enabled     *bool    `json:"enabled" yaml:"enabled"`
	Temperature *float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   *int     `json:"max_tokens" yaml:"max_tokens"`
}
