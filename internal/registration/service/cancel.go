package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"clubhouse/internal/registration/models"
	"clubhouse/internal/registration/notify"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/platform/sentinel"
	"clubhouse/pkg/requestcontext"
)

// Cancel cancels the member's active registration for an event.
//
// Cancelling a waitlisted registration closes the gap it leaves in the queue.
// Cancelling a confirmed one frees a place; under PromotionAuto the head of
// the tier's waitlist is confirmed in the same section when capacity allows.
// Success is reported whether or not anyone was promoted.
func (s *Service) Cancel(ctx context.Context, eventID id.EventID, memberID id.MemberID) (err error) {
	ctx, end := s.startOp(ctx, "Cancel",
		attribute.String("event_id", eventID.String()),
		attribute.String("member_id", memberID.String()))
	defer end(&err)

	if eventID.IsNil() || memberID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "event and member are required")
	}

	existing, err := s.store.FindActiveRegistration(ctx, memberID, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no active registration for this event")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load registration")
	}

	now := requestcontext.Now(ctx)
	var promoted *models.Registration
	after, err := s.runSection(ctx, "cancel", eventID, existing.TierID, func(txCtx context.Context) ([]audit.Event, error) {
		promoted = nil

		// Re-read under the lock: a concurrent cancel may have won.
		reg, err := s.store.FindRegistration(txCtx, existing.ID)
		if err != nil {
			return nil, err
		}
		if err := reg.CanCancel(); err != nil {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active registration for this event")
		}

		before := reg.Clone()
		wasConfirmed := reg.Status == models.StatusConfirmed
		vacated := reg.Position()
		reg.ApplyCancel(now)
		if err := s.store.UpdateRegistration(txCtx, reg); err != nil {
			return nil, err
		}
		events := []audit.Event{registrationEvent(audit.ActionRegistrationCancelled, before, reg, nil)}

		if !wasConfirmed {
			return events, s.compactWaitlist(txCtx, eventID, reg.TierID, vacated, now)
		}
		if s.policy != PromotionAuto {
			return events, nil
		}

		p, ev, err := s.promoteHead(txCtx, eventID, reg.TierID, now)
		if err != nil {
			return nil, err
		}
		if p != nil {
			promoted = p
			events = append(events, ev)
		}
		return events, nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncCancellation()
	s.logger.InfoContext(ctx, "registration cancelled",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", existing.ID.String(),
		"event_id", eventID.String(),
		"member_id", memberID.String(),
	)
	if promoted != nil {
		s.metrics.IncPromotion(string(models.PromotionOnCancel))
		s.logger.InfoContext(ctx, "waitlisted registration promoted",
			"registration_id", promoted.ID.String(),
			"trigger", models.PromotionOnCancel,
		)
		s.notify(after, notify.KindPromoted, promoted)
	}
	s.invalidateAvailability(after, eventID)
	return nil
}

// promoteHead confirms the tier's first waitlisted registration if the tier
// has a place left. It returns nil when nobody was promoted.
func (s *Service) promoteHead(txCtx context.Context, eventID id.EventID, tierID id.TierID, now time.Time) (*models.Registration, audit.Event, error) {
	_, _, m, ok, err := s.liveTierMetrics(txCtx, eventID, tierID)
	if err != nil || !ok || m.Remaining == 0 {
		return nil, audit.Event{}, err
	}
	waitlist, err := s.store.ListWaitlist(txCtx, eventID, tierID)
	if err != nil || len(waitlist) == 0 {
		return nil, audit.Event{}, err
	}

	head := waitlist[0]
	before := head.Clone()
	if err := s.confirmFromWaitlist(txCtx, head, now); err != nil {
		return nil, audit.Event{}, err
	}
	ev := registrationEvent(audit.ActionRegistrationPromoted, before, head,
		map[string]string{"trigger": string(models.PromotionOnCancel)})
	return head, ev, nil
}
