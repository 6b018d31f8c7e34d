package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/tools"
	"iot_query_agent/pkg"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		query     string
		intent    pkg.Intent
		wantTools []string
	}{
		{
			name:      "sensor data",
			query:     "What is the current humidity?",
			intent:    pkg.IntentSensorData,
			wantTools: []string{tools.FetchRecentReadings},
		},
		{
			name:      "device status",
			query:     "Are my devices online?",
			intent:    pkg.IntentDeviceStatus,
			wantTools: []string{tools.FetchDevices},
		},
		{
			name:      "alerts",
			query:     "Do I have any active alerts?",
			intent:    pkg.IntentAlerts,
			wantTools: []string{tools.FetchAlerts},
		},
		{
			name:      "analysis",
			query:     "Show me the trend over the last hour",
			intent:    pkg.IntentAnalysis,
			wantTools: []string{tools.FetchRecentReadings},
		},
		{
			name:      "statistics",
			query:     "What is the average?",
			intent:    pkg.IntentStatistics,
			wantTools: []string{tools.FetchRecentReadings, tools.FetchSensorStats},
		},
		{
			name:      "anomalies",
			query:     "Anything unusual going on?",
			intent:    pkg.IntentAnomalies,
			wantTools: []string{tools.FetchRecentReadings},
		},
		{
			name:      "reports",
			query:     "Give me an overview",
			intent:    pkg.IntentReports,
			wantTools: []string{tools.FetchDevices, tools.FetchSensorStats},
		},
		{
			name:      "unknown",
			query:     "hello there",
			intent:    pkg.IntentUnknown,
			wantTools: []string{tools.FetchRecentReadings},
		},
		{
			name:      "empty query",
			query:     "   ",
			intent:    pkg.IntentUnknown,
			wantTools: []string{tools.FetchRecentReadings},
		},
		{
			name:      "case insensitive",
			query:     "SHOW ME THE TEMPERATURE",
			intent:    pkg.IntentSensorData,
			wantTools: []string{tools.FetchRecentReadings},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			intent, required := Classify(tc.query)
			assert.Equal(t, tc.intent, intent)
			assert.Equal(t, tc.wantTools, required)
		})
	}
}

func TestClassifySupplementalTools(t *testing.T) {
	// "how many" widens the tool set beyond the intent's base tools.
	intent, required := Classify("How many readings do we have in total?")
	assert.Equal(t, pkg.IntentSensorData, intent)
	assert.Equal(t, []string{tools.FetchRecentReadings, tools.FetchSensorStats}, required)

	// A device mention pulls in the device tool even for sensor queries.
	_, required = Classify("What is the temperature on each device?")
	assert.Equal(t, []string{tools.FetchDevices, tools.FetchRecentReadings}, required)
}

func TestIntentNodeRun(t *testing.T) {
	node := NewIntentNode()
	assert.Equal(t, core.NodeIntentClassifier, node.Name())

	state := core.NewWorkflowState("show me recent sensor readings", "s-1")
	transition := node.Run(context.Background(), state)

	assert.Equal(t, core.TransitionNext, transition)
	assert.Equal(t, pkg.IntentSensorData, state.Intent)
	assert.Equal(t, []string{tools.FetchRecentReadings}, state.RequiredTools)
}
