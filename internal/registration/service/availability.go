package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"clubhouse/internal/event/status"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/requestcontext"
)

// Availability returns the event's tier metrics. The result may be served
// from the cache and be up to one TTL stale; admission never reads it.
func (s *Service) Availability(ctx context.Context, eventID id.EventID) (_ *tiermetrics.Summary, err error) {
	ctx, end := s.startOp(ctx, "Availability", attribute.String("event_id", eventID.String()))
	defer end(&err)

	if eventID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "event is required")
	}
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, eventID)
		if err != nil {
			s.logger.WarnContext(ctx, "availability cache read failed", "error", err, "event_id", eventID.String())
		} else if ok {
			return cached, nil
		}
	}

	if _, err := s.store.FindEvent(ctx, eventID); err != nil {
		return nil, loadErr(err, "event")
	}
	tiers, err := s.store.ListTiers(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket tiers")
	}
	regs, err := s.store.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registrations")
	}
	summary := tiermetrics.Aggregate(tiers, regs)

	if s.cache != nil {
		if err := s.cache.Set(ctx, eventID, summary); err != nil {
			s.logger.WarnContext(ctx, "availability cache write failed", "error", err, "event_id", eventID.String())
		}
	}
	return &summary, nil
}

// EventStatus derives the event's operational, visibility and registration
// states at request time.
func (s *Service) EventStatus(ctx context.Context, eventID id.EventID) (_ status.Snapshot, err error) {
	ctx, end := s.startOp(ctx, "EventStatus", attribute.String("event_id", eventID.String()))
	defer end(&err)

	if eventID.IsNil() {
		return status.Snapshot{}, dErrors.New(dErrors.CodeValidation, "event is required")
	}
	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		return status.Snapshot{}, loadErr(err, "event")
	}
	return status.Derive(event, requestcontext.Now(ctx)), nil
}

// ScheduleDefaults proposes publish and registration-open times for a new
// event in the organisation's timezone.
func (s *Service) ScheduleDefaults(ctx context.Context, requiresRegistration bool) status.Schedule {
	return status.DefaultSchedule(requestcontext.Now(ctx), s.location, requiresRegistration)
}
