// Package provider defines the narrow call contracts the engine has with
// image-generation and language-model backends, plus the concrete providers
// this binary ships with.
package provider

import "context"

// ProviderInfo identifies an active provider/model pair. The prompt package
// uses it to decide whether a backend accepts negative prompts.
type ProviderInfo struct {
	ID    string
	Model string
}

// ImageRequest is one image-generation call.
type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	Guidance       float64
}

// ImageResult is the outcome of a successful generation.
type ImageResult struct {
	ImageURL string
	Model    string
}

// ImageProvider generates avatar images. Errors propagate to the caller;
// the orchestrator owns retry/error policy.
type ImageProvider interface {
	Info() ProviderInfo
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)
}

// TextOptions tune a single language-model call.
type TextOptions struct {
	SystemMessage string
	Temperature   float64
	MaxTokens     int
}

// TextProvider answers free-form text requests. Used for meta-prompting only.
type TextProvider interface {
	GenerateText(ctx context.Context, input string, opts TextOptions) (string, error)
}

// ReferenceReleaser frees a locally-owned image resource, e.g. a blob URL
// handed to the hosting UI. Release must be safe to call once per reference.
type ReferenceReleaser interface {
	Release(ref string)
}
