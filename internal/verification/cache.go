package verification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"iot_query_agent/internal/logger"
)

// DefaultTTL bounds how long the whitelist may be served without a refresh.
const DefaultTTL = 300 * time.Second

// EntityStore provides the authoritative set of real entities. It is the
// only collaborator the cache talks to.
type EntityStore interface {
	Entities(ctx context.Context) (sensorTypes []string, deviceIDs []string, err error)
}

// EntityCache is a TTL-bound whitelist of real sensor types and device ids.
// It is shared process-wide and read-mostly; the mutex only guards the
// refresh-and-swap.
type EntityCache struct {
	store EntityStore
	ttl   time.Duration

	mu          sync.Mutex
	sensorTypes map[string]struct{}
	deviceIDs   map[string]struct{}
	lastRefresh time.Time

	now func() time.Time // injectable for tests
}

// NewEntityCache creates a lazily populated cache over the given store.
// A non-positive ttl falls back to DefaultTTL.
func NewEntityCache(store EntityStore, ttl time.Duration) *EntityCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EntityCache{
		store:       store,
		ttl:         ttl,
		sensorTypes: map[string]struct{}{},
		deviceIDs:   map[string]struct{}{},
		now:         time.Now,
	}
}

// Snapshot returns the current whitelist, refreshing it first when stale.
// Reads never see a partially swapped whitelist.
func (c *EntityCache) Snapshot(ctx context.Context) (sensorTypes []string, deviceIDs []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastRefresh.IsZero() || c.now().Sub(c.lastRefresh) > c.ttl {
		if err := c.refreshLocked(ctx); err != nil {
			return nil, nil, err
		}
	}

	for s := range c.sensorTypes {
		sensorTypes = append(sensorTypes, s)
	}
	for d := range c.deviceIDs {
		deviceIDs = append(deviceIDs, d)
	}
	return sensorTypes, deviceIDs, nil
}

// HasSensorType reports whether a sensor type is in the current whitelist
// without forcing a refresh.
func (c *EntityCache) HasSensorType(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sensorTypes[normalizeEntity(name)]
	return ok
}

func (c *EntityCache) refreshLocked(ctx context.Context) error {
	sensorTypes, deviceIDs, err := c.store.Entities(ctx)
	if err != nil {
		return fmt.Errorf("refreshing entity cache: %w", err)
	}

	fresh := make(map[string]struct{}, len(sensorTypes))
	for _, s := range sensorTypes {
		if s = normalizeEntity(s); s != "" {
			fresh[s] = struct{}{}
		}
	}
	devices := make(map[string]struct{}, len(deviceIDs))
	for _, d := range deviceIDs {
		if d = strings.TrimSpace(d); d != "" {
			devices[d] = struct{}{}
		}
	}

	c.sensorTypes = fresh
	c.deviceIDs = devices
	c.lastRefresh = c.now()

	logger.Debug().
		Int("sensor_types", len(fresh)).
		Int("devices", len(devices)).
		Msg("entity cache refreshed")
	return nil
}

func normalizeEntity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
