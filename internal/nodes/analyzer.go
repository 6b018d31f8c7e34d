package nodes

import (
	"context"
	"fmt"

	"iot_query_agent/internal/analysis"
	"iot_query_agent/internal/core"
	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/tools"
	"iot_query_agent/pkg"
)

// AnalyzerNode computes statistics, trends and anomalies over the collected
// readings. Absence of data is a normal outcome, not an error.
type AnalyzerNode struct{}

// NewAnalyzerNode creates the data analysis node.
func NewAnalyzerNode() *AnalyzerNode {
	return &AnalyzerNode{}
}

// Name implements core.Node.
func (n *AnalyzerNode) Name() string {
	return core.NodeDataAnalyzer
}

// Run implements core.Node.
func (n *AnalyzerNode) Run(ctx context.Context, state *core.WorkflowState) core.Transition {
	if state.ContextData == nil {
		return state.Fail(n.Name(), true,
			fmt.Errorf("%w: analyzer reached without collected data", core.ErrAnalysis))
	}

	state.Analysis = analysis.Analyze(collectedReadings(state))

	logger.Info().
		Bool("no_data", state.Analysis.NoData).
		Int("trends", len(state.Analysis.Trends)).
		Int("anomalies", len(state.Analysis.Anomalies)).
		Msg("📈 analysis complete")

	return core.TransitionNext
}

// collectedReadings pulls every sensor reading out of the context data,
// whatever tool produced it.
func collectedReadings(state *core.WorkflowState) []pkg.SensorReading {
	var readings []pkg.SensorReading
	for name, value := range state.ContextData {
		if name != tools.FetchRecentReadings {
			continue
		}
		if rs, ok := value.([]pkg.SensorReading); ok {
			readings = append(readings, rs...)
		}
	}
	return readings
}
