package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	eventmodels "clubhouse/internal/event/models"
	"clubhouse/internal/registration/models"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// Waitlist returns a tier's WAITLISTED registrations ordered by position.
func (s *Service) Waitlist(ctx context.Context, eventID id.EventID, tierID id.TierID) (_ []*models.Registration, err error) {
	ctx, end := s.startOp(ctx, "Waitlist",
		attribute.String("event_id", eventID.String()),
		attribute.String("tier_id", tierID.String()))
	defer end(&err)

	if eventID.IsNil() || tierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "event and ticket tier are required")
	}
	if _, err := s.store.FindTier(ctx, eventID, tierID); err != nil {
		return nil, loadErr(err, "ticket tier")
	}
	list, err := s.store.ListWaitlist(ctx, eventID, tierID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load waitlist")
	}
	return list, nil
}

// liveTierMetrics reads the tier and its registrations inside a section and
// aggregates them. ok is false when the tier is not active.
func (s *Service) liveTierMetrics(txCtx context.Context, eventID id.EventID, tierID id.TierID) (*eventmodels.TicketTier, []*models.Registration, tiermetrics.TierMetrics, bool, error) {
	tier, err := s.store.FindTier(txCtx, eventID, tierID)
	if err != nil {
		return nil, nil, tiermetrics.TierMetrics{}, false, loadErr(err, "ticket tier")
	}
	regs, err := s.store.ListTierRegistrations(txCtx, eventID, tierID)
	if err != nil {
		return nil, nil, tiermetrics.TierMetrics{}, false, err
	}
	summary := tiermetrics.Aggregate([]*eventmodels.TicketTier{tier}, regs)
	m, ok := summary.ForTier(tierID)
	return tier, regs, m, ok, nil
}

func maxWaitlistPosition(regs []*models.Registration) int {
	highest := 0
	for _, r := range regs {
		if r.Status == models.StatusWaitlisted && r.Position() > highest {
			highest = r.Position()
		}
	}
	return highest
}

// confirmFromWaitlist promotes target and closes the gap it leaves.
func (s *Service) confirmFromWaitlist(txCtx context.Context, target *models.Registration, now time.Time) error {
	vacated := target.Position()
	target.ApplyPromotion(now)
	if err := s.store.UpdateRegistration(txCtx, target); err != nil {
		return err
	}
	return s.compactWaitlist(txCtx, target.EventID, target.TierID, vacated, now)
}

// compactWaitlist moves every registration queued behind vacated up by one.
// Rows are rewritten head first so no two ever share a position.
func (s *Service) compactWaitlist(txCtx context.Context, eventID id.EventID, tierID id.TierID, vacated int, now time.Time) error {
	waitlist, err := s.store.ListWaitlist(txCtx, eventID, tierID)
	if err != nil {
		return err
	}
	for _, r := range waitlist {
		if r.Position() <= vacated {
			continue
		}
		r.MoveUp(now)
		if err := s.store.UpdateRegistration(txCtx, r); err != nil {
			return err
		}
	}
	return nil
}
