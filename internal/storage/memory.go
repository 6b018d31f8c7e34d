package storage

import (
	"context"
	"sync"
	"time"

	"iot_query_agent/pkg"
)

// MemoryTelemetryStore is an in-memory telemetry store for development and
// tests. Like its Redis counterpart it also serves as the entity store for
// the verification whitelist.
type MemoryTelemetryStore struct {
	mu       sync.Mutex
	readings []pkg.SensorReading
	devices  map[string]pkg.Device
	alerts   []pkg.Alert
}

// NewMemoryTelemetryStore creates an empty in-memory telemetry store.
func NewMemoryTelemetryStore() *MemoryTelemetryStore {
	return &MemoryTelemetryStore{
		devices: make(map[string]pkg.Device),
	}
}

// IngestReading appends one reading.
func (m *MemoryTelemetryStore) IngestReading(ctx context.Context, reading pkg.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = append(m.readings, reading)
	return nil
}

// RegisterDevice upserts a device record.
func (m *MemoryTelemetryStore) RegisterDevice(ctx context.Context, device pkg.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.ID] = device
	return nil
}

// RaiseAlert records an alert.
func (m *MemoryTelemetryStore) RaiseAlert(ctx context.Context, alert pkg.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

// RecentReadings returns up to limit of the most recent readings.
func (m *MemoryTelemetryStore) RecentReadings(ctx context.Context, limit int) ([]pkg.SensorReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	readings := m.readings
	if limit > 0 && len(readings) > limit {
		readings = readings[len(readings)-limit:]
	}
	out := make([]pkg.SensorReading, len(readings))
	copy(out, readings)
	return out, nil
}

// Devices returns the registered devices.
func (m *MemoryTelemetryStore) Devices(ctx context.Context) ([]pkg.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]pkg.Device, 0, len(m.devices))
	for _, device := range m.devices {
		devices = append(devices, device)
	}
	return devices, nil
}

// ActiveAlerts returns recorded alerts that are still active.
func (m *MemoryTelemetryStore) ActiveAlerts(ctx context.Context) ([]pkg.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active []pkg.Alert
	for _, alert := range m.alerts {
		if alert.Active {
			active = append(active, alert)
		}
	}
	return active, nil
}

// SensorStats summarizes the stored telemetry.
func (m *MemoryTelemetryStore) SensorStats(ctx context.Context) (pkg.SensorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := pkg.SensorStats{
		TotalReadings: len(m.readings),
		BySensorType:  make(map[string]int),
	}
	for _, reading := range m.readings {
		stats.BySensorType[reading.SensorType]++
	}
	for _, device := range m.devices {
		if device.Status == "active" {
			stats.ActiveDevices++
		}
	}
	return stats, nil
}

// Entities returns the whitelist of sensor types and device ids derived from
// the stored telemetry.
func (m *MemoryTelemetryStore) Entities(ctx context.Context) ([]string, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sensorTypes := map[string]struct{}{}
	deviceIDs := map[string]struct{}{}
	for _, reading := range m.readings {
		sensorTypes[reading.SensorType] = struct{}{}
		deviceIDs[reading.DeviceID] = struct{}{}
	}
	for id := range m.devices {
		deviceIDs[id] = struct{}{}
	}

	types := make([]string, 0, len(sensorTypes))
	for t := range sensorTypes {
		types = append(types, t)
	}
	ids := make([]string, 0, len(deviceIDs))
	for id := range deviceIDs {
		ids = append(ids, id)
	}
	return types, ids, nil
}

// SeedDemo fills the store with a small plausible data set, so the CLI can
// run without a live deployment.
func (m *MemoryTelemetryStore) SeedDemo(ctx context.Context) error {
	now := time.Now()

	_ = m.RegisterDevice(ctx, pkg.Device{ID: "esp32-lab", Name: "Lab node", Status: "active", LastSeen: now})
	_ = m.RegisterDevice(ctx, pkg.Device{ID: "esp32-roof", Name: "Roof node", Status: "active", LastSeen: now})

	for i := 0; i < 24; i++ {
		ts := now.Add(-time.Duration(24-i) * time.Hour)
		_ = m.IngestReading(ctx, pkg.SensorReading{
			DeviceID:   "esp32-lab",
			SensorType: "temperature",
			Value:      19.0 + 0.3*float64(i),
			Unit:       "°C",
			Timestamp:  ts,
		})
		_ = m.IngestReading(ctx, pkg.SensorReading{
			DeviceID:   "esp32-roof",
			SensorType: "ldr",
			Value:      float64(200 + (i%12)*40),
			Timestamp:  ts,
		})
	}

	return m.RaiseAlert(ctx, pkg.Alert{
		DeviceID:  "esp32-roof",
		AlertType: "connectivity",
		Severity:  "medium",
		Message:   "Intermittent uplink during the night window",
		Active:    true,
		Timestamp: now.Add(-2 * time.Hour),
	})
}
