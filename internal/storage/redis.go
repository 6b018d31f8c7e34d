package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"iot_query_agent/pkg"
)

// Redis key layout. Sessions live under session:<id>:history; telemetry and
// the verification whitelist under telemetry:*.
const (
	sessionKeyPattern = "session:%s:history"
	readingsKey       = "telemetry:readings"
	devicesKey        = "telemetry:devices"
	alertsKey         = "telemetry:alerts"
	sensorTypesKey    = "telemetry:sensor_types"
	deviceIDsKey      = "telemetry:device_ids"
	maxStoredReadings = 1000
)

// NewRedisClient connects to Redis from a URL and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisSessionStore keeps session histories in Redis lists with a TTL, so idle
// sessions expire on their own.
type RedisSessionStore struct {
	client *redis.Client
	cap    int64
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, cap int, ttl time.Duration) *RedisSessionStore {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &RedisSessionStore{
		client: client,
		cap:    int64(cap),
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf(sessionKeyPattern, sessionID)
}

// History returns the recorded interactions for a session, oldest first.
func (r *RedisSessionStore) History(ctx context.Context, sessionID string) ([]pkg.InteractionRecord, error) {
	raw, err := r.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}

	history := make([]pkg.InteractionRecord, 0, len(raw))
	for _, item := range raw {
		var record pkg.InteractionRecord
		if err := sonic.UnmarshalString(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal interaction record: %w", err)
		}
		history = append(history, record)
	}
	return history, nil
}

// Append records a completed interaction and trims the list to the cap.
func (r *RedisSessionStore) Append(ctx context.Context, sessionID string, record pkg.InteractionRecord) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	data, err := sonic.MarshalString(record)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction record: %w", err)
	}

	key := sessionKey(sessionID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -r.cap, -1)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append interaction record: %w", err)
	}
	return nil
}

// Reset removes a session history. It reports whether the session existed.
func (r *RedisSessionStore) Reset(ctx context.Context, sessionID string) (bool, error) {
	deleted, err := r.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reset session: %w", err)
	}
	return deleted > 0, nil
}

// ActiveSessions counts sessions with recorded history.
func (r *RedisSessionStore) ActiveSessions(ctx context.Context) (int, error) {
	var count int
	iter := r.client.Scan(ctx, 0, fmt.Sprintf(sessionKeyPattern, "*"), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return count, nil
}

// RedisTelemetryStore reads telemetry from Redis. It implements both the tool
// data-fetch boundary and the entity-store boundary used by verification.
type RedisTelemetryStore struct {
	client *redis.Client
}

// NewRedisTelemetryStore creates a Redis-backed telemetry store.
func NewRedisTelemetryStore(client *redis.Client) *RedisTelemetryStore {
	return &RedisTelemetryStore{client: client}
}

// RecentReadings returns the most recent readings, newest last.
func (r *RedisTelemetryStore) RecentReadings(ctx context.Context, limit int) ([]pkg.SensorReading, error) {
	if limit <= 0 {
		limit = maxStoredReadings
	}
	raw, err := r.client.LRange(ctx, readingsKey, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent readings: %w", err)
	}

	readings := make([]pkg.SensorReading, 0, len(raw))
	for _, item := range raw {
		var reading pkg.SensorReading
		if err := sonic.UnmarshalString(item, &reading); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

// Devices returns the registered devices.
func (r *RedisTelemetryStore) Devices(ctx context.Context) ([]pkg.Device, error) {
	raw, err := r.client.HVals(ctx, devicesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read devices: %w", err)
	}

	devices := make([]pkg.Device, 0, len(raw))
	for _, item := range raw {
		var device pkg.Device
		if err := sonic.UnmarshalString(item, &device); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// ActiveAlerts returns the currently active alerts.
func (r *RedisTelemetryStore) ActiveAlerts(ctx context.Context) ([]pkg.Alert, error) {
	raw, err := r.client.LRange(ctx, alertsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}

	alerts := make([]pkg.Alert, 0, len(raw))
	for _, item := range raw {
		var alert pkg.Alert
		if err := sonic.UnmarshalString(item, &alert); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
		}
		if alert.Active {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

// SensorStats summarizes the stored telemetry.
func (r *RedisTelemetryStore) SensorStats(ctx context.Context) (pkg.SensorStats, error) {
	readings, err := r.RecentReadings(ctx, maxStoredReadings)
	if err != nil {
		return pkg.SensorStats{}, err
	}
	devices, err := r.Devices(ctx)
	if err != nil {
		return pkg.SensorStats{}, err
	}

	stats := pkg.SensorStats{
		TotalReadings: len(readings),
		BySensorType:  make(map[string]int),
	}
	for _, reading := range readings {
		stats.BySensorType[reading.SensorType]++
	}
	for _, device := range devices {
		if device.Status == "active" {
			stats.ActiveDevices++
		}
	}
	return stats, nil
}

// Entities returns the verification whitelist of real sensor types and
// device ids.
func (r *RedisTelemetryStore) Entities(ctx context.Context) ([]string, []string, error) {
	sensorTypes, err := r.client.SMembers(ctx, sensorTypesKey).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sensor types: %w", err)
	}
	deviceIDs, err := r.client.SMembers(ctx, deviceIDsKey).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read device ids: %w", err)
	}
	return sensorTypes, deviceIDs, nil
}

// IngestReading appends one reading and keeps the whitelist sets in sync.
func (r *RedisTelemetryStore) IngestReading(ctx context.Context, reading pkg.SensorReading) error {
	data, err := sonic.MarshalString(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, readingsKey, data)
	pipe.LTrim(ctx, readingsKey, -maxStoredReadings, -1)
	pipe.SAdd(ctx, sensorTypesKey, reading.SensorType)
	pipe.SAdd(ctx, deviceIDsKey, reading.DeviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ingest reading: %w", err)
	}
	return nil
}

// RegisterDevice upserts a device record.
func (r *RedisTelemetryStore) RegisterDevice(ctx context.Context, device pkg.Device) error {
	data, err := sonic.MarshalString(device)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, devicesKey, device.ID, data)
	pipe.SAdd(ctx, deviceIDsKey, device.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}
