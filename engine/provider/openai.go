package provider

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"
)

// OpenAIConfig configures the OpenAI-backed text provider.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// OpenAIText serves meta-prompting calls through langchaingo's OpenAI LLM.
type OpenAIText struct {
	log    *zap.Logger
	config OpenAIConfig
	llm    *openai.LLM
}

func NewOpenAIText(log *zap.Logger, c OpenAIConfig) (*OpenAIText, error) {
	llmOpts := []openai.Option{openai.WithToken(c.APIKey)}
	if c.Model != "" {
		llmOpts = append(llmOpts, openai.WithModel(c.Model))
	}
	model, err := openai.New(llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create OpenAI model: %w", err)
	}
	return &OpenAIText{log: log, config: c, llm: model}, nil
}

func (o *OpenAIText) GenerateText(ctx context.Context, input string, opts TextOptions) (string, error) {
	tmpl := prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.NewSystemMessagePromptTemplate(opts.SystemMessage, nil),
		prompts.NewHumanMessagePromptTemplate(`{{.input}}`, []string{"input"}),
	})
	content, err := tmpl.Format(map[string]any{"input": input})
	if err != nil {
		return "", fmt.Errorf("format prompt: %w", err)
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxTokens))
	}

	completion, err := o.llm.Call(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}
	return completion, nil
}
