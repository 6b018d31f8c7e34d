package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot_query_agent/internal/analysis"
	"iot_query_agent/internal/core"
	"iot_query_agent/internal/tools"
	"iot_query_agent/pkg"
)

func TestAnalyzerBuildsReport(t *testing.T) {
	now := time.Now()
	readings := make([]pkg.SensorReading, 0, 5)
	for i := 0; i < 5; i++ {
		readings = append(readings, pkg.SensorReading{
			DeviceID:   "esp32-lab",
			SensorType: "temperature",
			Value:      float64(20 + i),
			Timestamp:  now.Add(time.Duration(i) * time.Minute),
		})
	}

	state := core.NewWorkflowState("q", "s-1")
	state.ContextData = map[string]any{tools.FetchRecentReadings: readings}

	node := NewAnalyzerNode()
	transition := node.Run(context.Background(), state)

	assert.Equal(t, core.TransitionNext, transition)
	require.NotNil(t, state.Analysis)
	assert.False(t, state.Analysis.NoData)
	assert.Equal(t, 5, state.Analysis.Summary.TotalReadings)
	assert.Equal(t, analysis.TrendIncreasing, state.Analysis.Trends["temperature"])
}

func TestAnalyzerWithoutReadingsReportsNoData(t *testing.T) {
	state := core.NewWorkflowState("q", "s-1")
	state.ContextData = map[string]any{tools.FetchDevices: []pkg.Device{}}

	node := NewAnalyzerNode()
	transition := node.Run(context.Background(), state)

	// No readings is a normal outcome for device or alert queries.
	assert.Equal(t, core.TransitionNext, transition)
	require.NotNil(t, state.Analysis)
	assert.True(t, state.Analysis.NoData)
}

func TestAnalyzerFailsOnMissingContext(t *testing.T) {
	state := core.NewWorkflowState("q", "s-1")
	state.ContextData = nil

	node := NewAnalyzerNode()
	transition := node.Run(context.Background(), state)

	assert.Equal(t, core.TransitionError, transition)
	require.NotNil(t, state.ErrorInfo)
	assert.Equal(t, core.NodeDataAnalyzer, state.ErrorInfo.Node)
	assert.ErrorIs(t, state.ErrorInfo.Err, core.ErrAnalysis)
}
