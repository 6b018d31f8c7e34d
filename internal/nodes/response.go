package nodes

import (
	"context"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/llm"
	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/storage"
	"iot_query_agent/pkg"
)

// historyWindow caps how many past interactions are handed to the model.
const historyWindow = 5

// ResponseNode asks the language model for an answer grounded in the
// collected data and the analysis report.
type ResponseNode struct {
	generator llm.Generator
	sessions  storage.SessionStore
}

// NewResponseNode creates the response generation node. The session store
// may be nil; the model then works without conversation history.
func NewResponseNode(generator llm.Generator, sessions storage.SessionStore) *ResponseNode {
	return &ResponseNode{generator: generator, sessions: sessions}
}

// Name implements core.Node.
func (n *ResponseNode) Name() string {
	return core.NodeResponseGenerator
}

// Run implements core.Node. Every backend failure is recoverable so the
// error handler may retry the run.
func (n *ResponseNode) Run(ctx context.Context, state *core.WorkflowState) core.Transition {
	req := llm.Request{
		Query:       state.Query,
		Intent:      state.Intent,
		ContextData: state.ContextData,
		Analysis:    state.Analysis,
		History:     n.history(ctx, state.SessionID),
	}

	text, err := n.generator.Generate(ctx, req)
	if err != nil {
		return state.Fail(n.Name(), true, err)
	}
	state.FinalResponse = text

	logger.Info().
		Str("provider", n.generator.Provider()).
		Int("response_len", len(text)).
		Msg("💬 response generated")

	return core.TransitionNext
}

func (n *ResponseNode) history(ctx context.Context, sessionID string) []pkg.InteractionRecord {
	if n.sessions == nil {
		return nil
	}
	records, err := n.sessions.History(ctx, sessionID)
	if err != nil {
		logger.Warn().
			Str("session_id", sessionID).
			Err(err).
			Msg("⚠️ history unavailable, generating without it")
		return nil
	}
	if len(records) > historyWindow {
		records = records[len(records)-historyWindow:]
	}
	return records
}
