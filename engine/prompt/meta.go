package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"companion.arpa/engine/personality"
	"companion.arpa/engine/provider"
)

// creativeDirectorBrief is the fixed system specification for meta-prompting.
// The 7-part structure keeps model output usable as a raw image prompt.
const creativeDirectorBrief = `You are an expert creative director writing prompts for an AI image generator.
Given the character and scene context, write ONE image-generation prompt as a single
paragraph of comma-separated descriptive phrases. The prompt must cover, in order:
1. Subject: who the character is and what they look like.
2. Pose and expression.
3. Setting: where the scene takes place.
4. Atmosphere and art style.
5. Lighting.
6. Camera and composition.
7. Realism and detail qualifiers.
Output only the prompt text. No headings, no numbering, no commentary, no quotes.`

const maxContextRunes = 800

// MetaConfig controls the meta-prompting stage.
type MetaConfig struct {
	Enabled     bool
	Temperature float64
	MaxTokens   int
}

// Delegator is the optional stage C of the pipeline: it asks a language
// model to author the creative prompt and falls back to local composition on
// any failure. It never retries and never surfaces its errors to the caller.
type Delegator struct {
	log    *zap.Logger
	config MetaConfig
	text   provider.TextProvider
}

func NewDelegator(log *zap.Logger, c MetaConfig, text provider.TextProvider) *Delegator {
	if c.Temperature == 0 {
		c.Temperature = 0.9
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 400
	}
	return &Delegator{log: log, config: c, text: text}
}

// Enabled reports whether the stage should run at all: feature-flagged on
// and a language-model provider available.
func (d *Delegator) Enabled() bool {
	return d != nil && d.config.Enabled && d.text != nil
}

// StateSummary describes the current avatar for the context block.
type StateSummary struct {
	Expression string
	Pose       string
	Action     string
	Visible    bool
}

// Author asks the language model for a full image prompt. The returned text
// replaces the locally composed prompt wholesale. The empty string with a
// nil error never occurs, so err != nil is the only degradation signal.
func (d *Delegator) Author(ctx context.Context, params Parameters, state StateSummary, pers *personality.Profile, conversationContext string) (string, error) {
	input := d.contextBlock(params, state, pers, conversationContext)

	out, err := d.text.GenerateText(ctx, input, provider.TextOptions{
		SystemMessage: creativeDirectorBrief,
		Temperature:   d.config.Temperature,
		MaxTokens:     d.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("meta-prompt call: %w", err)
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return "", fmt.Errorf("meta-prompt call: empty completion")
	}
	return out, nil
}

func (d *Delegator) contextBlock(params Parameters, state StateSummary, pers *personality.Profile, conversationContext string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current avatar state: expression=%s, pose=%s", state.Expression, state.Pose)
	if state.Action != "" && state.Action != "none" {
		fmt.Fprintf(&b, ", action=%s", state.Action)
	}
	if !state.Visible {
		b.WriteString(" (currently hidden, about to appear)")
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Requested look: expression=%s, pose=%s, style=%s, background=%s, lighting=%s\n",
		params.Expression, params.Pose, params.Style, params.Background, params.Lighting)

	if params.AIDescription != "" {
		fmt.Fprintf(&b, "Explicit scene direction: %s\n", params.AIDescription)
	}
	if pers != nil {
		if pers.BaseCharacterIdentity != "" {
			fmt.Fprintf(&b, "Character identity: %s\n", pers.BaseCharacterIdentity)
		}
		if pers.PreferredClothingStyle != "" {
			fmt.Fprintf(&b, "Usual clothing: %s\n", pers.PreferredClothingStyle)
		}
		if pers.TypicalEnvironmentKeywords != "" {
			fmt.Fprintf(&b, "Usual environment: %s\n", pers.TypicalEnvironmentKeywords)
		}
	}
	if conversationContext != "" {
		fmt.Fprintf(&b, "Recent conversation:\n%s\n", truncateRunes(conversationContext, maxContextRunes))
	}
	if len(params.ContextualKeywords) > 0 {
		fmt.Fprintf(&b, "Keywords to weave in: %s\n", strings.Join(params.ContextualKeywords, ", "))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
