package tools

import (
	"context"
	"fmt"

	"iot_query_agent/pkg"
)

// DefaultReadingLimit caps how much raw telemetry a single query pulls in.
const DefaultReadingLimit = 100

// TelemetryStore is the data-fetching boundary to the telemetry database.
type TelemetryStore interface {
	RecentReadings(ctx context.Context, limit int) ([]pkg.SensorReading, error)
	Devices(ctx context.Context) ([]pkg.Device, error)
	ActiveAlerts(ctx context.Context) ([]pkg.Alert, error)
	SensorStats(ctx context.Context) (pkg.SensorStats, error)
}

// RegisterBuiltin wires the standard data-fetch tools over a telemetry store.
func RegisterBuiltin(registry *Registry, store TelemetryStore) error {
	builtin := map[string]Tool{
		FetchRecentReadings: func(ctx context.Context) (any, error) {
			return store.RecentReadings(ctx, DefaultReadingLimit)
		},
		FetchDevices: func(ctx context.Context) (any, error) {
			return store.Devices(ctx)
		},
		FetchAlerts: func(ctx context.Context) (any, error) {
			return store.ActiveAlerts(ctx)
		},
		FetchSensorStats: func(ctx context.Context) (any, error) {
			return store.SensorStats(ctx)
		},
	}

	for name, tool := range builtin {
		if err := registry.Register(name, tool); err != nil {
			return fmt.Errorf("registering builtin tools: %w", err)
		}
	}
	return nil
}
