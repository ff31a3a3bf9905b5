// Package emotion infers avatar expression, pose, and action from free-form
// AI response text. The heuristics are keyword tables tuned to one
// character's vocabulary, not a general sentiment engine; the Analyzer
// interface exists so a host can swap in something more principled without
// touching the orchestration pipeline.
package emotion

import (
	"regexp"
	"strings"

	"companion.arpa/engine/prompt"
)

// Context is the analyzer's verdict for one response.
type Context struct {
	Expression string
	Action     string
	Pose       string
	ShouldShow bool
}

// Analyzer maps response text to an avatar reaction.
type Analyzer interface {
	Analyze(text string) Context
}

// actionCueRe matches emote markers like *waves happily*.
var actionCueRe = regexp.MustCompile(`\*([^*]+)\*`)

// keywordRule maps the first keyword found in a cue to a category value.
// Order matters: earlier rules win within one cue.
type keywordRule struct {
	keyword string
	value   string
}

// KeywordAnalyzer is the default two-pass analyzer.
type KeywordAnalyzer struct {
	expressions []keywordRule
	poses       []keywordRule
	actions     []keywordRule
}

// NewKeywordAnalyzer builds the analyzer with the character's stock tables.
func NewKeywordAnalyzer() *KeywordAnalyzer {
	return &KeywordAnalyzer{
		expressions: []keywordRule{
			{"laugh", "laughing"},
			{"giggle", "laughing"},
			{"grin", "happy"},
			{"smile", "happy"},
			{"blush", "shy"},
			{"wink", "playful"},
			{"smirk", "playful"},
			{"pout", "annoyed"},
			{"sigh", "sad"},
			{"cry", "sad"},
			{"gasp", "surprised"},
			{"think", "thinking"},
			{"ponder", "thinking"},
			{"curious", "curious"},
			{"excit", "excited"},
		},
		poses: []keywordRule{
			{"sit", "sitting"},
			{"lean", "leaning"},
			{"jump", "jumping"},
			{"spin", "twirling"},
			{"twirl", "twirling"},
			{"stretch", "stretching"},
			{"dance", "dancing"},
		},
		actions: []keywordRule{
			{"wave", "waving"},
			{"nod", "nodding"},
			{"clap", "clapping"},
			{"point", "pointing"},
			{"shrug", "shrugging"},
			{"bow", "bowing"},
			{"salute", "saluting"},
			{"peace", "peace sign"},
		},
	}
}

// Analyze runs the bracketed-cue pass and, only when that pass produced no
// expression, the whole-message fallback chain. First matching branch wins.
func (a *KeywordAnalyzer) Analyze(text string) Context {
	var ec Context

	cues := actionCueRe.FindAllStringSubmatch(text, -1)
	if len(cues) > 0 {
		// Any emote marker at all means the avatar should react on screen.
		ec.ShouldShow = true
	}
	for _, cue := range cues {
		content := strings.ToLower(cue[1])
		if v, ok := matchRule(a.expressions, content); ok {
			ec.Expression = v
		}
		if v, ok := matchRule(a.poses, content); ok {
			ec.Pose = v
		}
		if v, ok := matchRule(a.actions, content); ok {
			ec.Action = v
		}
	}

	if ec.Expression == "" {
		a.fallback(text, &ec)
	}
	return ec
}

// fallback is an ordered if/else-if chain over whole-message heuristics.
func (a *KeywordAnalyzer) fallback(text string, ec *Context) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "!") && containsAny(lower, positiveWords):
		ec.Expression = "excited"
		ec.ShouldShow = true
	case strings.Contains(text, "?") && containsAny(lower, questionWords):
		ec.Expression = "curious"
		ec.ShouldShow = true
	case containsAny(lower, reflectiveWords):
		ec.Expression = "thinking"
		ec.ShouldShow = true
	case containsAny(lower, greetingWords):
		ec.Expression = "happy"
		ec.Action = "waving"
		ec.ShouldShow = true
	}
}

var (
	positiveWords   = []string{"great", "awesome", "amazing", "wonderful", "love", "fantastic", "perfect", "yay"}
	questionWords   = []string{"what", "how", "why", "when", "where", "who", "which"}
	reflectiveWords = []string{"let me think", "hmm", "i wonder", "considering", "interesting question"}
	greetingWords   = []string{"hello", "hi there", "hey", "good morning", "good evening", "welcome back"}
)

func matchRule(rules []keywordRule, content string) (string, bool) {
	for _, r := range rules {
		if strings.Contains(content, r.keyword) {
			return r.value, true
		}
	}
	return "", false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// descriptionRules are a separate, scene-oriented vocabulary used only for
// explicit AI-authored image descriptions. First match per category wins.
var (
	descExpressions = []keywordRule{
		{"smil", "happy"},
		{"laugh", "laughing"},
		{"happy", "happy"},
		{"sad", "sad"},
		{"serious", "serious"},
		{"shy", "shy"},
		{"surpris", "surprised"},
		{"thought", "thinking"},
		{"wistful", "thinking"},
	}
	descPoses = []keywordRule{
		{"sitting", "sitting"},
		{"lying", "lying down"},
		{"leaning", "leaning"},
		{"walking", "walking"},
		{"running", "running"},
		{"dancing", "dancing"},
		{"kneeling", "kneeling"},
	}
	descActions = []keywordRule{
		{"waving", "waving"},
		{"holding", "holding something"},
		{"reading", "reading"},
		{"drinking", "drinking"},
		{"looking", "looking at viewer"},
		{"reaching", "reaching out"},
	}
	descLighting = []keywordRule{
		{"rain", "overcast rain-dimmed light"},
		{"sunset", "warm golden hour lighting"},
		{"sunrise", "soft dawn lighting"},
		{"night", "cool moonlit lighting"},
		{"neon", "vivid neon lighting"},
		{"candle", "flickering candlelight"},
		{"studio", "diffuse studio lighting"},
	}
	descBackgrounds = []keywordRule{
		{"rain", "rainy city street"},
		{"beach", "sunlit beach"},
		{"forest", "dense green forest"},
		{"city", "city skyline"},
		{"cafe", "cozy cafe interior"},
		{"room", "warm bedroom interior"},
		{"office", "tidy office"},
		{"garden", "blooming garden"},
	}
)

// DescriptionParams maps an explicit scene description into generation
// parameters. The result is always complete: unmatched categories fall back
// to the neutral defaults.
func DescriptionParams(description string) prompt.Parameters {
	lower := strings.ToLower(description)
	var p prompt.Parameters
	if v, ok := matchRule(descExpressions, lower); ok {
		p.Expression = v
	}
	if v, ok := matchRule(descPoses, lower); ok {
		p.Pose = v
	}
	if v, ok := matchRule(descActions, lower); ok {
		p.Action = v
	}
	if v, ok := matchRule(descLighting, lower); ok {
		p.Lighting = v
	}
	if v, ok := matchRule(descBackgrounds, lower); ok {
		p.Background = v
	}
	return p.Defaulted()
}
