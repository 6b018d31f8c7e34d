package pkg

import (
	"time"
)

// Core domain types shared across the agent, tools and storage layers.

// SensorReading is a single telemetry measurement from a device.
type SensorReading struct {
	DeviceID   string    `json:"device_id"`
	SensorType string    `json:"sensor_type"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Device represents a registered IoT device.
type Device struct {
	ID       string    `json:"device_id"`
	Name     string    `json:"name,omitempty"`
	Status   string    `json:"status"` // active, inactive, offline
	LastSeen time.Time `json:"last_seen"`
}

// Alert represents a triggered alert from the telemetry store.
type Alert struct {
	DeviceID  string    `json:"device_id"`
	AlertType string    `json:"alert_type"`
	Severity  string    `json:"severity"` // low, medium, high, critical
	Message   string    `json:"message"`
	Active    bool      `json:"active"`
	Timestamp time.Time `json:"timestamp"`
}

// SensorStats summarizes the telemetry store contents.
type SensorStats struct {
	TotalReadings int            `json:"total_readings"`
	BySensorType  map[string]int `json:"by_sensor_type"`
	ActiveDevices int            `json:"active_devices"`
}

// Intent is the coarse classification of what the user is asking for.
type Intent string

const (
	IntentSensorData   Intent = "sensor_data"
	IntentDeviceStatus Intent = "device_status"
	IntentAlerts       Intent = "alerts"
	IntentAnalysis     Intent = "analysis"
	IntentStatistics   Intent = "statistics"
	IntentAnomalies    Intent = "anomalies"
	IntentReports      Intent = "reports"
	IntentUnknown      Intent = "unknown"
)

// ExecutionStatus tracks the terminal outcome of one workflow run.
type ExecutionStatus string

const (
	StatusPending ExecutionStatus = "pending"
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
)

// ExecutionMetadata is the append-only audit trail of one workflow run.
type ExecutionMetadata struct {
	RunID         string          `json:"run_id"`
	NodesExecuted []string        `json:"nodes_executed"`
	ToolsUsed     []string        `json:"tools_used"`
	StartTime     time.Time       `json:"start_time"`
	EndTime       time.Time       `json:"end_time"`
	Status        ExecutionStatus `json:"status"`
	Attempts      int             `json:"attempts"`
}

// ProcessResult is the public output of one Process call.
type ProcessResult struct {
	Response  string            `json:"response"`
	Status    ExecutionStatus   `json:"status"`
	Intent    Intent            `json:"intent"`
	ToolsUsed []string          `json:"tools_used,omitempty"`
	SessionID string            `json:"session_id"`
	Metadata  ExecutionMetadata `json:"execution_metadata"`
}

// InteractionRecord is one completed query/response pair in a session history.
type InteractionRecord struct {
	Query     string          `json:"query"`
	Response  string          `json:"response"`
	Status    ExecutionStatus `json:"status"`
	ToolsUsed []string        `json:"tools_used,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// AgentStatus reports the current state of the orchestrator.
type AgentStatus struct {
	Initialized    bool   `json:"initialized"`
	ActiveSessions int    `json:"active_sessions"`
	Provider       string `json:"provider,omitempty"`
}
