package prompt

// Parameters canonically describes one desired avatar image. It is a value
// object: construction order never matters, the orchestrator hashes a
// canonical encoding of it (see avatar.RequestHash).
type Parameters struct {
	Expression string `json:"expression"`
	Pose       string `json:"pose"`
	Action     string `json:"action"`
	Style      string `json:"style"`
	Background string `json:"background"`
	Lighting   string `json:"lighting"`
	Quality    string `json:"quality"`

	// AIDescription is an explicit creative brief authored by the language
	// model. When present it is prefixed verbatim to the compiled prompt.
	AIDescription string `json:"aiDescription,omitempty"`

	VariationSeed      int64    `json:"variationSeed,omitempty"`
	ContextualKeywords []string `json:"contextualKeywords,omitempty"`

	// MetaGeneratedImagePrompt carries a precomputed meta-prompt result, set
	// when stage C already ran for this request.
	MetaGeneratedImagePrompt string `json:"metaGeneratedImagePrompt,omitempty"`
}

// Defaults for parameter fields left empty by the caller.
const (
	DefaultExpression = "neutral"
	DefaultPose       = "standing"
	DefaultAction     = "none"
	DefaultStyle      = "anime"
	DefaultBackground = "soft gradient"
	DefaultLighting   = "soft ambient lighting"
	DefaultQuality    = "high"
)

// Defaulted returns a copy with every empty enum field replaced by its
// neutral default. The result is always complete, never partial.
func (p Parameters) Defaulted() Parameters {
	if p.Expression == "" {
		p.Expression = DefaultExpression
	}
	if p.Pose == "" {
		p.Pose = DefaultPose
	}
	if p.Action == "" {
		p.Action = DefaultAction
	}
	if p.Style == "" {
		p.Style = DefaultStyle
	}
	if p.Background == "" {
		p.Background = DefaultBackground
	}
	if p.Lighting == "" {
		p.Lighting = DefaultLighting
	}
	if p.Quality == "" {
		p.Quality = DefaultQuality
	}
	return p
}
