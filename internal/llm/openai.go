package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// OpenAIConfig configures the OpenAI-compatible backend. BaseURL may point
// at any compatible endpoint (OpenAI, OpenRouter, Groq).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

// OpenAIGenerator generates responses through an Eino chain:
// ChatTemplate -> ChatModel.
type OpenAIGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewOpenAIGenerator creates the OpenAI-backed generator.
func NewOpenAIGenerator(ctx context.Context, config OpenAIConfig) (*OpenAIGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	maxTokens := config.MaxTokens
	temperature := float32(config.Temperature)

	model, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      config.APIKey,
		BaseURL:     config.BaseURL,
		Model:       config.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(responseTemplate()).
		AppendChatModel(model).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("error creating Eino chain: %w", err)
	}

	return &OpenAIGenerator{chain: chain}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	vars, err := templateVars(req)
	if err != nil {
		return "", NewGenerationError(g.Provider(), err)
	}

	out, err := g.chain.Invoke(ctx, vars)
	if err != nil {
		return "", NewGenerationError(g.Provider(), err)
	}

	text := strings.TrimSpace(out.Content)
	if text == "" {
		return "", NewGenerationError(g.Provider(), fmt.Errorf("model returned an empty response"))
	}
	return text, nil
}

// Provider implements Generator.
func (g *OpenAIGenerator) Provider() string {
	return "openai"
}
