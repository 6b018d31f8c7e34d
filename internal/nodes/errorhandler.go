package nodes

import (
	"context"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/logger"
)

// friendlyMessages maps the failing node to a user-facing explanation.
// None of them leak internal error text.
var friendlyMessages = map[string]string{
	core.NodeIntentClassifier:  "I could not understand your question. Could you rephrase it?",
	core.NodeDataCollector:     "I could not reach the sensor data right now. Please try again in a moment.",
	core.NodeDataAnalyzer:      "I could not analyze the sensor data for your question. Please try again.",
	core.NodeResponseGenerator: "I could not generate an answer right now. Please try again in a moment.",
	core.NodeVerification:      "I could not fully verify my answer against the live sensors. Please try again.",
}

const genericFailureMessage = "Something went wrong while processing your question. Please try again."

// ErrorHandlerNode decides between retrying the workflow and ending it with
// a friendly message. It is the only place RetryCount is incremented.
type ErrorHandlerNode struct {
	maxRetries int
}

// NewErrorHandlerNode creates the error handler. A negative bound falls back
// to core.MaxRetries.
func NewErrorHandlerNode(maxRetries int) *ErrorHandlerNode {
	if maxRetries < 0 {
		maxRetries = core.MaxRetries
	}
	return &ErrorHandlerNode{maxRetries: maxRetries}
}

// Name implements core.Node.
func (n *ErrorHandlerNode) Name() string {
	return core.NodeErrorHandler
}

// Run implements core.Node.
func (n *ErrorHandlerNode) Run(ctx context.Context, state *core.WorkflowState) core.Transition {
	if state.ErrorInfo == nil {
		// Routed here without a recorded failure; nothing sane to retry.
		state.FinalResponse = genericFailureMessage
		return core.TransitionEnd
	}

	if state.ErrorInfo.Recoverable && state.RetryCount < n.maxRetries && ctx.Err() == nil {
		state.RetryCount++
		logger.Warn().
			Str("failed_node", state.ErrorInfo.Node).
			Int("retry", state.RetryCount).
			Int("max_retries", n.maxRetries).
			Err(state.ErrorInfo.Err).
			Msg("🔄 recoverable failure, retrying")
		state.ErrorInfo = nil
		return core.TransitionRetry
	}

	message, ok := friendlyMessages[state.ErrorInfo.Node]
	if !ok {
		message = genericFailureMessage
	}
	logger.Error().
		Str("failed_node", state.ErrorInfo.Node).
		Int("retries_used", state.RetryCount).
		Err(state.ErrorInfo.Err).
		Msg("❌ workflow failed, giving up")

	state.FinalResponse = message
	return core.TransitionEnd
}
