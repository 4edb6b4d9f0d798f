// Package notify tells members about admission outcomes. Delivery is best
// effort: the admission service logs a failed notification and moves on.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	id "clubhouse/pkg/domain"
	"clubhouse/pkg/platform/circuit"
)

// Kind names the admission outcome a member is told about.
type Kind string

const (
	KindConfirmed  Kind = "registration.confirmed"
	KindWaitlisted Kind = "registration.waitlisted"
	KindPromoted   Kind = "registration.promoted"
)

// Notification is the message body published for one outcome.
type Notification struct {
	Kind             Kind              `json:"kind"`
	RegistrationID   id.RegistrationID `json:"registration_id"`
	MemberID         id.MemberID       `json:"member_id"`
	EventID          id.EventID        `json:"event_id"`
	TierID           id.TierID         `json:"tier_id"`
	WaitlistPosition int               `json:"waitlist_position,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// LogNotifier writes notifications to the log. Used when no broker is
// configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) error {
	n.logger.InfoContext(ctx, "member notification",
		"kind", note.Kind,
		"registration_id", note.RegistrationID.String(),
		"member_id", note.MemberID.String(),
		"event_id", note.EventID.String(),
		"waitlist_position", note.WaitlistPosition,
	)
	return nil
}

// Channel is the subset of *amqp.Channel the notifier publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPNotifier publishes notifications as persistent JSON messages to a
// durable queue on the default exchange.
type AMQPNotifier struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel Channel
	queue   string
}

// DialAMQP connects to the broker and declares the queue.
func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	n := NewAMQPNotifier(ch, queue)
	n.conn = conn
	return n, nil
}

// NewAMQPNotifier publishes through an already opened channel.
func NewAMQPNotifier(ch Channel, queue string) *AMQPNotifier {
	return &AMQPNotifier{channel: ch, queue: queue}
}

func (n *AMQPNotifier) Notify(ctx context.Context, note Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    note.RegistrationID.String() + ":" + string(note.Kind),
		Type:         string(note.Kind),
		Timestamp:    note.OccurredAt.UTC(),
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing.
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.channel.PublishWithContext(ctx, "", n.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the channel and, when dialled here, the connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	err := n.channel.Close()
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Notifier is implemented by every delivery channel.
type Notifier interface {
	Notify(ctx context.Context, note Notification) error
}

// GuardedNotifier publishes through primary and falls back to fallback while
// the breaker is open. Primary is still attempted so the circuit can close.
type GuardedNotifier struct {
	primary  Notifier
	fallback Notifier
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewGuardedNotifier(primary, fallback Notifier, breaker *circuit.Breaker, logger *slog.Logger) *GuardedNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardedNotifier{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (g *GuardedNotifier) Notify(ctx context.Context, note Notification) error {
	err := g.primary.Notify(ctx, note)
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "notification circuit closed", "breaker", g.breaker.Name())
		}
		return nil
	}

	useFallback, change := g.breaker.RecordFailure()
	if change.Opened {
		g.logger.WarnContext(ctx, "notification circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
	if !useFallback {
		return err
	}
	return g.fallback.Notify(ctx, note)
}
