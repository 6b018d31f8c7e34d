package nodes

import (
	"time"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/llm"
	"iot_query_agent/internal/storage"
	"iot_query_agent/internal/tools"
	"iot_query_agent/internal/verification"
)

// Pipeline assembles the standard five-stage workflow in execution order:
// classify, collect, analyze, generate, verify.
func Pipeline(
	registry *tools.Registry,
	generator llm.Generator,
	verifier *verification.Verifier,
	sessions storage.SessionStore,
	toolTimeout time.Duration,
) []core.Node {
	return []core.Node{
		NewIntentNode(),
		NewCollectorNode(registry, toolTimeout),
		NewAnalyzerNode(),
		NewResponseNode(generator, sessions),
		NewVerifyNode(verifier),
	}
}
