package llm

import (
	"context"
	"fmt"

	"iot_query_agent/internal/analysis"
	"iot_query_agent/pkg"
)

// Generator turns a query plus its collected context into response text.
// Implementations must return a non-empty string or a *GenerationError.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Provider() string
}

// Request carries everything a backend may use to produce a response.
type Request struct {
	Query       string
	Intent      pkg.Intent
	ContextData map[string]any
	Analysis    *analysis.Report
	History     []pkg.InteractionRecord
}

// GenerationError marks a backend failure or timeout. Generation failures
// are recoverable: the orchestrator may retry the whole workflow.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError wraps a backend error.
func NewGenerationError(provider string, err error) *GenerationError {
	return &GenerationError{Provider: provider, Err: err}
}
