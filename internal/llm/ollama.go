package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// OllamaConfig configures the local Ollama backend.
type OllamaConfig struct {
	BaseURL string // defaults to the local daemon
	Model   string
}

// OllamaGenerator generates responses through a locally running Ollama.
type OllamaGenerator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewOllamaGenerator creates the Ollama-backed generator.
func NewOllamaGenerator(ctx context.Context, config OllamaConfig) (*OllamaGenerator, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model name is required")
	}

	model, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   config.Model,
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

	return &OllamaGenerator{chain: chain}, nil
}

// Generate implements Generator.
func (g *OllamaGenerator) Generate(ctx context.Context, req Request) (string, error) {
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
func (g *OllamaGenerator) Provider() string {
	return "ollama"
}
