// Package cache holds read-side caches for the registration module. Nothing
// here is consulted when deciding an admission; the critical section always
// works from a live snapshot.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
)

const availabilityKeyPrefix = "clubhouse:availability:"

// DefaultAvailabilityTTL bounds staleness when an invalidation is lost.
const DefaultAvailabilityTTL = 30 * time.Second

// Availability caches an event's tier metrics summary in Redis.
type Availability struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewAvailability creates a cache over client. A non-positive ttl selects
// DefaultAvailabilityTTL.
func NewAvailability(client redis.Cmdable, ttl time.Duration) *Availability {
	if ttl <= 0 {
		ttl = DefaultAvailabilityTTL
	}
	return &Availability{client: client, ttl: ttl}
}

func availabilityKey(eventID id.EventID) string {
	return availabilityKeyPrefix + eventID.String()
}

// Get returns the cached summary. The boolean is false on a miss.
func (c *Availability) Get(ctx context.Context, eventID id.EventID) (*tiermetrics.Summary, bool, error) {
	raw, err := c.client.Get(ctx, availabilityKey(eventID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read availability: %w", err)
	}
	var summary tiermetrics.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		// Treat a corrupt entry as a miss; the next Set overwrites it.
		return nil, false, nil
	}
	return &summary, true, nil
}

// Set stores summary for the configured TTL.
func (c *Availability) Set(ctx context.Context, eventID id.EventID, summary tiermetrics.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode availability: %w", err)
	}
	if err := c.client.Set(ctx, availabilityKey(eventID), string(raw), c.ttl).Err(); err != nil {
		return fmt.Errorf("write availability: %w", err)
	}
	return nil
}

// Invalidate drops the cached summary after a committed transition.
func (c *Availability) Invalidate(ctx context.Context, eventID id.EventID) error {
	if err := c.client.Del(ctx, availabilityKey(eventID)).Err(); err != nil {
		return fmt.Errorf("invalidate availability: %w", err)
	}
	return nil
}
