package avatar

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"companion.arpa/engine/prompt"
)

// RequestHash digests a generation request into a stable identifier.
// Parameters are flattened into a map and JSON-encoded. encoding/json
// writes map keys in lexicographic order, so two logically identical
// requests hash identically no matter how their parameter objects were
// constructed.
func RequestHash(params prompt.Parameters, finalPrompt, negativePrompt string) string {
	canonical := map[string]any{
		"expression":     params.Expression,
		"pose":           params.Pose,
		"action":         params.Action,
		"style":          params.Style,
		"background":     params.Background,
		"lighting":       params.Lighting,
		"quality":        params.Quality,
		"aiDescription":  params.AIDescription,
		"variationSeed":  params.VariationSeed,
		"keywords":       strings.Join(params.ContextualKeywords, ","),
		"prompt":         finalPrompt,
		"negativePrompt": negativePrompt,
	}

	encoded, err := json.Marshal(canonical)
	if err != nil {
		// Marshal over plain strings/ints cannot fail; keep a defined value
		// anyway so the hash is never empty.
		encoded = []byte(finalPrompt)
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
