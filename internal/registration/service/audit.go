package service

import (
	"context"
	"log/slog"

	"github.com/mssola/useragent"

	"clubhouse/internal/eligibility"
	regmetrics "clubhouse/internal/registration/metrics"
	"clubhouse/internal/registration/models"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/requestcontext"
)

// auditEmitter turns committed transitions into audit records. In fail-closed
// mode emit is called inside the atomic section and its error aborts the
// transition; otherwise it runs after commit and failures are only reported.
type auditEmitter struct {
	logger     *slog.Logger
	publisher  AuditPublisher
	metrics    *regmetrics.Metrics
	failClosed bool
}

func newAuditEmitter(logger *slog.Logger, publisher AuditPublisher, m *regmetrics.Metrics, failClosed bool) *auditEmitter {
	return &auditEmitter{logger: logger, publisher: publisher, metrics: m, failClosed: failClosed}
}

func (e *auditEmitter) emit(ctx context.Context, event audit.Event) error {
	if event.ActorID == "" {
		event.ActorID = requestcontext.ActorID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	event.Metadata = withRequestMetadata(ctx, event.Metadata)

	e.logger.InfoContext(ctx, string(event.Action),
		"log_type", "audit",
		"resource_type", event.ResourceType,
		"resource_id", event.ResourceID,
		"actor_id", event.ActorID,
		"request_id", event.Metadata["request_id"],
	)
	if e.publisher == nil {
		return nil
	}
	if err := e.publisher.Emit(ctx, event); err != nil {
		e.metrics.IncAuditFailure()
		e.logger.ErrorContext(ctx, "failed to record audit event",
			"error", err,
			"action", event.Action,
			"resource_id", event.ResourceID,
			"fail_closed", e.failClosed,
		)
		if e.failClosed {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
		}
	}
	return nil
}

func withRequestMetadata(ctx context.Context, meta map[string]string) map[string]string {
	if meta == nil {
		meta = make(map[string]string)
	}
	if v := requestcontext.RequestID(ctx); v != "" {
		meta["request_id"] = v
	}
	if v := requestcontext.ClientIP(ctx); v != "" {
		meta["client_ip"] = v
	}
	if raw := requestcontext.UserAgent(ctx); raw != "" {
		ua := useragent.New(raw)
		browser, version := ua.Browser()
		meta["browser"] = browser
		meta["browser_version"] = version
		meta["os"] = ua.OS()
		if ua.Bot() {
			meta["bot"] = "true"
		}
	}
	return meta
}

// registrationSnapshot is the before/after payload of registration events.
type registrationSnapshot struct {
	ID               string `json:"id"`
	MemberID         string `json:"member_id"`
	EventID          string `json:"event_id"`
	TierID           string `json:"tier_id"`
	Status           string `json:"status"`
	WaitlistPosition *int   `json:"waitlist_position,omitempty"`
}

func snapshotRegistration(r *models.Registration) *registrationSnapshot {
	if r == nil {
		return nil
	}
	var pos *int
	if r.WaitlistPosition != nil {
		p := *r.WaitlistPosition
		pos = &p
	}
	return &registrationSnapshot{
		ID:               r.ID.String(),
		MemberID:         r.MemberID.String(),
		EventID:          r.EventID.String(),
		TierID:           r.TierID.String(),
		Status:           string(r.Status),
		WaitlistPosition: pos,
	}
}

func registrationEvent(action audit.Action, before, after *models.Registration, meta map[string]string) audit.Event {
	subject := after
	if subject == nil {
		subject = before
	}
	ev := audit.Event{
		Action:       action,
		ResourceType: audit.ResourceRegistration,
		ResourceID:   subject.ID.String(),
		Metadata:     meta,
	}
	// A nil *registrationSnapshot stored in an interface is not a nil
	// interface; leave unset sides empty.
	if after != nil {
		ev.After = snapshotRegistration(after)
	}
	if before != nil {
		ev.Before = snapshotRegistration(before)
	}
	return ev
}

type overrideSnapshot struct {
	MemberID string `json:"member_id"`
	EventID  string `json:"event_id"`
	TierID   string `json:"tier_id"`
	Outcome  string `json:"outcome"`
	Reason   string `json:"reason"`
}

func overrideEvent(action audit.Action, key eligibility.OverrideKey, before, after *eligibility.Override) audit.Event {
	ev := audit.Event{
		Action:       action,
		ResourceType: audit.ResourceOverride,
		ResourceID:   key.MemberID.String() + ":" + key.EventID.String() + ":" + key.TierID.String(),
	}
	if before != nil {
		ev.Before = snapshotOverride(before)
	}
	if after != nil {
		ev.After = snapshotOverride(after)
	}
	return ev
}

func snapshotOverride(o *eligibility.Override) *overrideSnapshot {
	return &overrideSnapshot{
		MemberID: o.MemberID.String(),
		EventID:  o.EventID.String(),
		TierID:   o.TierID.String(),
		Outcome:  string(o.Outcome),
		Reason:   o.Reason,
	}
}
