package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"companion.arpa/tools/random"
)

// GeminiConfig configures the Gemini image provider.
type GeminiConfig struct {
	APIKey string
	Model  string
	// ImageDir is where generated images are written. The returned
	// references use the file: scheme and are locally owned.
	ImageDir string
}

// Gemini generates avatar images through the Gemini API and stores them as
// local files, so the orchestrator's reference lifecycle applies.
type Gemini struct {
	log    *zap.Logger
	config GeminiConfig
	client *genai.Client
}

func NewGemini(ctx context.Context, log *zap.Logger, c GeminiConfig) (*Gemini, error) {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash-image"
	}
	if c.ImageDir == "" {
		c.ImageDir = os.TempDir()
	}
	if err := os.MkdirAll(c.ImageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{log: log, config: c, client: client}, nil
}

func (g *Gemini) Info() ProviderInfo {
	return ProviderInfo{ID: "gemini", Model: g.config.Model}
}

func (g *Gemini) GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error) {
	prompt := req.Prompt
	// Gemini has no negative-prompt field; the gate keeps it off the request
	// already, this is only a safety net.
	if req.NegativePrompt != "" {
		prompt += "\nAvoid: " + req.NegativePrompt
	}

	content := &genai.Content{
		Parts: []*genai.Part{genai.NewPartFromText(prompt)},
	}

	result, err := g.client.Models.GenerateContent(ctx, g.config.Model,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{
				AspectRatio: aspectRatio(req.Width, req.Height),
			},
		})
	if err != nil {
		return ImageResult{}, fmt.Errorf("gemini generate content: %w", err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			path, err := g.writeImage(part.InlineData.Data)
			if err != nil {
				return ImageResult{}, err
			}
			g.log.Debug("Gemini returned image",
				zap.Int("bytes", len(part.InlineData.Data)),
				zap.String("path", path))
			return ImageResult{ImageURL: "file:" + path, Model: g.config.Model}, nil
		}
	}
	return ImageResult{}, fmt.Errorf("gemini response contained no image data")
}

func (g *Gemini) writeImage(data []byte) (string, error) {
	name := fmt.Sprintf("avatar_%d_%d.png", time.Now().UnixMilli(), random.Int(0, 999999))
	path := filepath.Join(g.config.ImageDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write generated image: %w", err)
	}
	return path, nil
}

// aspectRatio maps requested dimensions onto the ratios Gemini accepts.
func aspectRatio(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	r := float64(width) / float64(height)
	switch {
	case r > 1.55:
		return "16:9"
	case r > 1.15:
		return "4:3"
	case r > 0.87:
		return "1:1"
	case r > 0.65:
		return "3:4"
	default:
		return "9:16"
	}
}
