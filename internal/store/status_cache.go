package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"TrafficLens/internal/config"
	"TrafficLens/internal/model"
)

// StatusCache keeps the latest real-time status snapshot per sensor in
// Redis. Entries expire so dead sensors age out of the cache.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache connects to Redis and verifies the connection.
func NewStatusCache(cfg config.RedisConfig) (*StatusCache, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &StatusCache{
		client: client,
		ttl:    config.Duration(cfg.TTL, 24*time.Hour),
	}, nil
}

func statusKey(sensorID string) string {
	return "sensor:status:" + sensorID
}

// Set overwrites the latest status for a sensor.
func (c *StatusCache) Set(ctx context.Context, status *model.StatusSnapshot) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status snapshot: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(status.SensorID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache status for sensor '%s': %w", status.SensorID, err)
	}
	return nil
}

// Get returns the latest status for a sensor, or nil when none is cached.
func (c *StatusCache) Get(ctx context.Context, sensorID string) (*model.StatusSnapshot, error) {
	data, err := c.client.Get(ctx, statusKey(sensorID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status for sensor '%s': %w", sensorID, err)
	}

	var status model.StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached status: %w", err)
	}
	return &status, nil
}

// Close closes the Redis connection.
func (c *StatusCache) Close() error {
	return c.client.Close()
}
