package nodes

import (
	"context"
	"sort"
	"strings"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/tools"
	"iot_query_agent/pkg"
)

// intentRule maps one intent to its trigger keywords and base tool set.
// Rules are evaluated top to bottom; the first match wins, so ties are
// deterministic.
type intentRule struct {
	intent   pkg.Intent
	keywords []string
	tools    []string
}

var intentTable = []intentRule{
	{pkg.IntentSensorData,
		[]string{"sensor", "reading", "temperature", "light", "measurement", "value", "current"},
		[]string{tools.FetchRecentReadings}},
	{pkg.IntentDeviceStatus,
		[]string{"device", "status", "online", "offline", "connected", "connection"},
		[]string{tools.FetchDevices}},
	{pkg.IntentAlerts,
		[]string{"alert", "alarm", "warning", "problem", "critical"},
		[]string{tools.FetchAlerts}},
	{pkg.IntentAnalysis,
		[]string{"trend", "analysis", "analyze", "pattern", "evolution", "behavior"},
		[]string{tools.FetchRecentReadings}},
	{pkg.IntentStatistics,
		[]string{"statistic", "average", "mean", "maximum", "minimum"},
		[]string{tools.FetchSensorStats, tools.FetchRecentReadings}},
	{pkg.IntentAnomalies,
		[]string{"anomaly", "anomalies", "abnormal", "unusual", "outlier", "strange"},
		[]string{tools.FetchRecentReadings}},
	{pkg.IntentReports,
		[]string{"report", "summary", "overview"},
		[]string{tools.FetchSensorStats, tools.FetchDevices}},
}

// Supplemental tools triggered by keywords regardless of the winning intent.
var supplementalTools = []struct {
	keywords []string
	tool     string
}{
	{[]string{"count", "total", "how many"}, tools.FetchSensorStats},
	{[]string{"device"}, tools.FetchDevices},
}

// defaultTools backs the unknown intent.
var defaultTools = []string{tools.FetchRecentReadings}

// Classify maps a raw query to an intent and the tools it requires. It is a
// pure function of the query string; an empty or whitespace-only query maps
// to the unknown intent rather than failing.
func Classify(query string) (pkg.Intent, []string) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return pkg.IntentUnknown, append([]string(nil), defaultTools...)
	}

	intent := pkg.IntentUnknown
	base := defaultTools
	for _, rule := range intentTable {
		if containsAnyKeyword(query, rule.keywords) {
			intent = rule.intent
			base = rule.tools
			break
		}
	}

	required := map[string]struct{}{}
	for _, tool := range base {
		required[tool] = struct{}{}
	}
	for _, supplement := range supplementalTools {
		if containsAnyKeyword(query, supplement.keywords) {
			required[supplement.tool] = struct{}{}
		}
	}

	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)
	return intent, names
}

func containsAnyKeyword(query string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(query, kw) {
			return true
		}
	}
	return false
}

// IntentNode classifies the query and decides which tools to run.
type IntentNode struct{}

// NewIntentNode creates the intent classification node.
func NewIntentNode() *IntentNode {
	return &IntentNode{}
}

// Name implements core.Node.
func (n *IntentNode) Name() string {
	return core.NodeIntentClassifier
}

// Run implements core.Node. Classification cannot fail: the worst case is
// the unknown intent with the default tool set.
func (n *IntentNode) Run(ctx context.Context, state *core.WorkflowState) core.Transition {
	state.Intent, state.RequiredTools = Classify(state.Query)

	logger.Info().
		Str("intent", string(state.Intent)).
		Strs("required_tools", state.RequiredTools).
		Msg("🔍 query classified")

	return core.TransitionNext
}
