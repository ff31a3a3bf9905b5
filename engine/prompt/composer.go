// Package prompt turns generation parameters into image-generation prompts.
// Composition is three-stage: deterministic local composition, an optional
// personality modification pass, and an optional meta-prompting stage that
// delegates authorship to a language model (see meta.go).
package prompt

import (
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"companion.arpa/engine/personality"
	"companion.arpa/engine/provider"
)

// Components is the structured decomposition of a prompt before compilation.
// VariationSeed and ContextualKeywords are echoed for traceability.
type Components struct {
	CharacterIdentity  string
	StyleKeywords      string
	QualityKeywords    string
	ExpressionKeywords string
	PoseKeywords       string
	ActionKeywords     string
	Lighting           string
	Setting            string
	NegativeExclusions []string

	VariationSeed      int64
	ContextualKeywords []string

	aiDescription string
}

// Config holds the composer defaults that come from external configuration.
type Config struct {
	CharacterIdentity string
	StyleKeywords     string
	QualityKeywords   string
}

// Composer performs stage A (local composition) and stage B (personality
// modification). It is stateless apart from its defaults; the same inputs
// always produce the same components.
type Composer struct {
	log    *zap.Logger
	config Config
}

func NewComposer(log *zap.Logger, c Config) *Composer {
	if c.CharacterIdentity == "" {
		c.CharacterIdentity = "1girl, solo, virtual companion character"
	}
	if c.StyleKeywords == "" {
		c.StyleKeywords = "clean lineart, vibrant colors"
	}
	if c.QualityKeywords == "" {
		c.QualityKeywords = "masterpiece, best quality, highly detailed"
	}
	return &Composer{log: log, config: c}
}

// Fixed descriptive phrases per enum value. Unknown values fall back to a
// neutral phrase instead of erroring.
var (
	expressionPhrases = map[string]string{
		"neutral":   "calm neutral expression",
		"happy":     "bright happy smile",
		"excited":   "excited sparkling eyes, open-mouthed smile",
		"laughing":  "laughing with eyes closed",
		"curious":   "curious head tilt, wide eyes",
		"thinking":  "thoughtful look, finger to chin",
		"shy":       "shy blushing expression",
		"playful":   "playful wink",
		"sad":       "gentle melancholy expression",
		"surprised": "surprised raised eyebrows",
		"serious":   "composed serious expression",
		"annoyed":   "annoyed pout",
	}
	posePhrases = map[string]string{
		"standing":   "standing upright, relaxed posture",
		"sitting":    "sitting gracefully",
		"leaning":    "leaning forward slightly",
		"jumping":    "mid-jump, dynamic pose",
		"twirling":   "twirling with flowing motion",
		"stretching": "stretching arms overhead",
		"dancing":    "dancing mid-step",
		"walking":    "walking toward viewer",
		"running":    "running, hair in motion",
		"lying down": "lying down, relaxed",
		"kneeling":   "kneeling, hands on lap",
	}
	actionPhrases = map[string]string{
		"none":              "",
		"waving":            "waving at viewer",
		"nodding":           "nodding in agreement",
		"clapping":          "clapping hands",
		"pointing":          "pointing upward",
		"shrugging":         "light shrug",
		"bowing":            "polite bow",
		"saluting":          "cheerful salute",
		"peace sign":        "flashing a peace sign",
		"holding something": "holding a small object",
		"reading":           "reading a book",
		"drinking":          "sipping a drink",
		"looking at viewer": "looking directly at viewer",
		"reaching out":      "reaching toward viewer",
	}

	baseExclusions = []string{
		"lowres", "bad anatomy", "bad hands", "extra digits",
		"jpeg artifacts", "watermark", "signature", "blurry",
		"deformed", "disfigured",
	}

	// variationPhrases adds mild, seed-reproducible variety to the setting.
	variationPhrases = []string{
		"subtle depth of field",
		"gentle wind in hair",
		"soft bokeh highlights",
		"delicate rim light",
		"faint lens flare",
		"floating dust motes",
	}
)

func phraseOr(table map[string]string, key, fallback string) string {
	if v, ok := table[strings.ToLower(key)]; ok {
		return v
	}
	return fallback
}

// Compose derives prompt components from params, applying the personality's
// overrides and modification pass when one is active. conversationContext is
// free text from the host's recent chat history; it only influences the
// modification pass, never the base tables.
func (c *Composer) Compose(params Parameters, pers *personality.Profile, conversationContext string) Components {
	params = params.Defaulted()

	identity := c.config.CharacterIdentity
	style := params.Style
	styleKeywords := c.config.StyleKeywords
	quality := c.config.QualityKeywords

	// Personality overrides replace composer defaults before component
	// generation (stage B, first half).
	if pers != nil {
		if pers.BaseCharacterIdentity != "" {
			identity = pers.BaseCharacterIdentity
		}
		if pers.StyleKeywords != "" {
			styleKeywords = pers.StyleKeywords
		}
		if pers.QualityKeywords != "" {
			quality = pers.QualityKeywords
		}
	}

	comp := Components{
		CharacterIdentity:  identity,
		StyleKeywords:      strings.TrimSpace(style + " style, " + styleKeywords),
		QualityKeywords:    quality,
		ExpressionKeywords: phraseOr(expressionPhrases, params.Expression, "calm neutral expression"),
		PoseKeywords:       phraseOr(posePhrases, params.Pose, "standing upright, relaxed posture"),
		ActionKeywords:     phraseOr(actionPhrases, params.Action, ""),
		Lighting:           params.Lighting,
		Setting:            params.Background,
		NegativeExclusions: append([]string(nil), baseExclusions...),
		VariationSeed:      params.VariationSeed,
		ContextualKeywords: append([]string(nil), params.ContextualKeywords...),
		aiDescription:      params.AIDescription,
	}

	if pers != nil {
		c.modifyForPersonality(&comp, pers, conversationContext, params)
	}
	return comp
}

// modifyForPersonality runs the personality-aware modification pass
// (stage B, second half). For a fixed variation seed the pass is
// reproducible: the variation phrase is picked with a seeded source.
func (c *Composer) modifyForPersonality(comp *Components, pers *personality.Profile, conversationContext string, params Parameters) {
	if pers.PreferredClothingStyle != "" {
		comp.CharacterIdentity += ", wearing " + pers.PreferredClothingStyle
	}
	if len(pers.ArtStyleModifiers) > 0 {
		comp.StyleKeywords += ", " + strings.Join(pers.ArtStyleModifiers, ", ")
	}

	hasExplicitDescription := params.AIDescription != ""
	metaActive := params.MetaGeneratedImagePrompt != ""

	// An explicit creative brief already decides the setting; only fall back
	// to the personality's usual environment for local composition.
	if !hasExplicitDescription && !metaActive && pers.TypicalEnvironmentKeywords != "" {
		comp.Setting = pers.TypicalEnvironmentKeywords
	}

	if conversationContext != "" {
		comp.ContextualKeywords = append(comp.ContextualKeywords, contextKeywords(conversationContext)...)
	}

	if params.VariationSeed != 0 {
		rng := rand.New(rand.NewSource(params.VariationSeed)) // #nosec G404 -- reproducible styling, not security
		comp.Setting = strings.TrimSpace(comp.Setting + ", " + variationPhrases[rng.Intn(len(variationPhrases))])
	}
}

// contextKeywords pulls a handful of content words out of recent
// conversation so the image loosely reflects what is being discussed.
func contextKeywords(conversationContext string) []string {
	lower := strings.ToLower(conversationContext)
	var out []string
	for _, kw := range []string{"rain", "coffee", "music", "book", "night", "morning", "game", "stars", "snow", "ocean"} {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}

// Compile concatenates components in a fixed order and derives the negative
// prompt from the exclusion list. A present AI description is prefixed
// verbatim, producing a hybrid prompt.
func (comp Components) Compile() (string, string) {
	parts := make([]string, 0, 8)
	appendPart := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	appendPart(comp.CharacterIdentity)
	appendPart(comp.ExpressionKeywords)
	appendPart(comp.PoseKeywords)
	appendPart(comp.ActionKeywords)
	appendPart(comp.Setting)
	appendPart(comp.Lighting)
	appendPart(comp.StyleKeywords)
	appendPart(comp.QualityKeywords)
	if len(comp.ContextualKeywords) > 0 {
		appendPart(strings.Join(comp.ContextualKeywords, ", "))
	}

	final := strings.Join(parts, ", ")
	if comp.aiDescription != "" {
		final = fmt.Sprintf("%s. %s", strings.TrimSpace(comp.aiDescription), final)
	}
	negative := strings.Join(comp.NegativeExclusions, ", ")
	return final, negative
}

// Negative-prompt capability gate. Providers/models matching a deny
// substring never receive a negative prompt, even when an allow substring
// also matches.
var (
	negativeAllow = []string{"replicate", "stability", "runpod"}
	negativeDeny  = []string{"flux", "midjourney", "dalle", "imagen", "minimax/video-01", "minimax/image-01"}
)

// AllowsNegativePrompt reports whether the active provider/model accepts a
// negative prompt on the request.
func AllowsNegativePrompt(info provider.ProviderInfo) bool {
	id := strings.ToLower(info.ID)
	model := strings.ToLower(info.Model)
	for _, deny := range negativeDeny {
		if strings.Contains(id, deny) || strings.Contains(model, deny) {
			return false
		}
	}
	for _, allow := range negativeAllow {
		if strings.Contains(id, allow) || strings.Contains(model, allow) {
			return true
		}
	}
	return false
}
