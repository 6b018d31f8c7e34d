package nodes

import (
	"context"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/verification"
)

// VerifyNode checks the generated response against the sensors that
// actually exist and rewrites it when the model invented data.
type VerifyNode struct {
	verifier *verification.Verifier
}

// NewVerifyNode creates the verification node.
func NewVerifyNode(verifier *verification.Verifier) *VerifyNode {
	return &VerifyNode{verifier: verifier}
}

// Name implements core.Node.
func (n *VerifyNode) Name() string {
	return core.NodeVerification
}

// Run implements core.Node. Verification never blocks delivery: if the
// whitelist cannot be refreshed the response goes out unverified with the
// failure recorded in the result.
func (n *VerifyNode) Run(ctx context.Context, state *core.WorkflowState) core.Transition {
	text, result, err := n.verifier.Verify(ctx, state.FinalResponse)
	state.FinalResponse = text
	state.Verification = result
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("⚠️ verification unavailable, response passed through")
		return core.TransitionNext
	}

	logger.Info().
		Str("verification_status", result.Status).
		Int("hallucinations", len(result.Hallucinations)).
		Msg("🔎 response verified")

	return core.TransitionNext
}
