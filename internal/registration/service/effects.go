package service

import (
	"context"

	"clubhouse/internal/registration/models"
	"clubhouse/internal/registration/notify"
	id "clubhouse/pkg/domain"
	"clubhouse/pkg/requestcontext"
)

// notify tells the member about an outcome. Failures are logged and counted;
// the admission decision has already committed.
func (s *Service) notify(ctx context.Context, kind notify.Kind, reg *models.Registration) {
	if s.notifier == nil || reg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	note := notify.Notification{
		Kind:             kind,
		RegistrationID:   reg.ID,
		MemberID:         reg.MemberID,
		EventID:          reg.EventID,
		TierID:           reg.TierID,
		WaitlistPosition: reg.Position(),
		OccurredAt:       requestcontext.Now(ctx),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.metrics.IncNotificationFailure()
		s.logger.WarnContext(ctx, "member notification failed",
			"error", err,
			"kind", kind,
			"registration_id", reg.ID.String(),
		)
	}
}

// invalidateAvailability drops the cached summary for an event whose
// registrations changed.
func (s *Service) invalidateAvailability(ctx context.Context, eventID id.EventID) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		s.logger.WarnContext(ctx, "availability cache invalidation failed",
			"error", err,
			"event_id", eventID.String(),
		)
	}
}
