//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "clubhouse/pkg/domain"
	"clubhouse/pkg/testutil/containers"
)

func TestAvailabilityAgainstRedis(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	rc.Reset(t)
	ctx := context.Background()
	c := NewAvailability(rc.Client, time.Minute)
	eventID := id.EventID(uuid.New())

	summary := sampleSummary()
	require.NoError(t, c.Set(ctx, eventID, summary))

	got, ok, err := c.Get(ctx, eventID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, summary, *got)

	ttl := rc.TTL(t, availabilityKey(eventID))
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	require.NoError(t, c.Invalidate(ctx, eventID))
	_, ok, err = c.Get(ctx, eventID)
	require.NoError(t, err)
	assert.False(t, ok)
}
