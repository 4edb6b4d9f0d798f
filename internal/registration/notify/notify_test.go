package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "clubhouse/pkg/domain"
	"clubhouse/pkg/platform/circuit"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func sampleNotification() Notification {
	return Notification{
		Kind:             KindWaitlisted,
		RegistrationID:   id.NewRegistrationID(),
		MemberID:         id.MemberID(uuid.New()),
		EventID:          id.EventID(uuid.New()),
		TierID:           id.TierID(uuid.New()),
		WaitlistPosition: 3,
		OccurredAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAMQPNotifier(t *testing.T) {
	t.Run("publishes persistent json to the queue", func(t *testing.T) {
		ch := &fakeChannel{}
		n := NewAMQPNotifier(ch, "member.notifications")
		note := sampleNotification()

		require.NoError(t, n.Notify(context.Background(), note))
		require.Len(t, ch.published, 1)
		msg := ch.published[0]
		assert.Equal(t, "/member.notifications", ch.keys[0])
		assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
		assert.Equal(t, "application/json", msg.ContentType)
		assert.Equal(t, string(KindWaitlisted), msg.Type)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(msg.Body, &decoded))
		assert.Equal(t, note.RegistrationID.String(), decoded["registration_id"])
		assert.EqualValues(t, 3, decoded["waitlist_position"])
	})

	t.Run("wraps publish errors", func(t *testing.T) {
		boom := errors.New("channel closed")
		n := NewAMQPNotifier(&fakeChannel{err: boom}, "q")
		err := n.Notify(context.Background(), sampleNotification())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("close closes the channel", func(t *testing.T) {
		ch := &fakeChannel{}
		require.NoError(t, NewAMQPNotifier(ch, "q").Close())
		assert.True(t, ch.closed)
	})
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, n.Notify(context.Background(), sampleNotification()))
	assert.Contains(t, buf.String(), `"kind":"registration.waitlisted"`)
}

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) Notify(context.Context, Notification) error {
	n.calls++
	return n.err
}

func TestGuardedNotifier(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	t.Run("returns primary errors while the circuit is closed", func(t *testing.T) {
		primary := &countingNotifier{err: errors.New("broker down")}
		fallback := &countingNotifier{}
		g := NewGuardedNotifier(primary, fallback, circuit.New("amqp", circuit.WithFailureThreshold(2)), logger)

		assert.Error(t, g.Notify(ctx, sampleNotification()))
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("serves the fallback once the circuit opens", func(t *testing.T) {
		primary := &countingNotifier{err: errors.New("broker down")}
		fallback := &countingNotifier{}
		breaker := circuit.New("amqp", circuit.WithFailureThreshold(2))
		g := NewGuardedNotifier(primary, fallback, breaker, logger)

		_ = g.Notify(ctx, sampleNotification())
		require.NoError(t, g.Notify(ctx, sampleNotification()))
		require.NoError(t, g.Notify(ctx, sampleNotification()))

		assert.True(t, breaker.IsOpen())
		assert.Equal(t, 3, primary.calls)
		assert.Equal(t, 2, fallback.calls)
	})

	t.Run("closes after the primary recovers", func(t *testing.T) {
		primary := &countingNotifier{err: errors.New("broker down")}
		breaker := circuit.New("amqp", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
		g := NewGuardedNotifier(primary, &countingNotifier{}, breaker, logger)

		require.NoError(t, g.Notify(ctx, sampleNotification()))
		require.True(t, breaker.IsOpen())

		primary.err = nil
		require.NoError(t, g.Notify(ctx, sampleNotification()))
		require.NoError(t, g.Notify(ctx, sampleNotification()))
		assert.False(t, breaker.IsOpen())
	})
}
