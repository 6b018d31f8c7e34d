package tools

import (
	"context"
	"fmt"
	"sort"
)

// Tool is a named data-fetch operation. Tools fail in isolation: an error
// from one tool never aborts the others in a batch.
type Tool func(ctx context.Context) (any, error)

// Canonical tool names used by the intent classifier.
const (
	FetchRecentReadings = "fetch_recent_readings"
	FetchDevices        = "fetch_devices"
	FetchAlerts         = "fetch_alerts"
	FetchSensorStats    = "fetch_sensor_stats"
)

// Registry maps operation names to invokable tools. Registrations are
// validated up front so a bad wiring fails at construction time, not at call
// time.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool under the given name.
func (r *Registry) Register(name string, tool Tool) error {
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool == nil {
		return fmt.Errorf("tool %q cannot be nil", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
