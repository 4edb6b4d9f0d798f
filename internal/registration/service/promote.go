package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"clubhouse/internal/registration/models"
	"clubhouse/internal/registration/notify"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/requestcontext"
)

// Promote confirms a waitlisted registration on an administrator's request.
// It works under either promotion policy. Without overrideCapacity a full
// tier rejects the promotion; with it the tier may exceed its quantity and
// the result carries a warning.
func (s *Service) Promote(ctx context.Context, registrationID id.RegistrationID, overrideCapacity bool) (_ *models.PromoteResult, err error) {
	ctx, end := s.startOp(ctx, "Promote",
		attribute.String("registration_id", registrationID.String()),
		attribute.Bool("override_capacity", overrideCapacity))
	defer end(&err)

	if registrationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "registration id is required")
	}
	existing, err := s.store.FindRegistration(ctx, registrationID)
	if err != nil {
		return nil, loadErr(err, "registration")
	}
	if err := existing.CanPromote(); err != nil {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonNotWaitlisted,
			"only waitlisted registrations can be promoted")
	}

	now := requestcontext.Now(ctx)
	var result *models.PromoteResult
	after, err := s.runSection(ctx, "promote", existing.EventID, existing.TierID, func(txCtx context.Context) ([]audit.Event, error) {
		reg, err := s.store.FindRegistration(txCtx, registrationID)
		if err != nil {
			return nil, err
		}
		if err := reg.CanPromote(); err != nil {
			return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonNotWaitlisted,
				"only waitlisted registrations can be promoted")
		}

		tier, _, m, ok, err := s.liveTierMetrics(txCtx, reg.EventID, reg.TierID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonTierInactive,
				"ticket tier is not active")
		}
		if m.Remaining == 0 && !overrideCapacity {
			return nil, dErrors.NewWithReason(dErrors.CodeCapacityExceeded, ReasonCapacityExceeded,
				fmt.Sprintf("ticket tier %s has no remaining capacity", tier.Code))
		}

		before := reg.Clone()
		if err := s.confirmFromWaitlist(txCtx, reg, now); err != nil {
			return nil, err
		}

		result = &models.PromoteResult{
			Registration:      reg,
			Status:            reg.Status,
			RemainingWaitlist: m.Waitlisted - 1,
			SpotsAvailable:    max(0, m.Remaining-1),
		}
		meta := map[string]string{"trigger": string(models.PromotionManual)}
		if m.Remaining == 0 {
			result.Warning = fmt.Sprintf("ticket tier %s is over capacity: %d confirmed for %d places",
				tier.Code, m.Sold+1, tier.Quantity)
			meta["override_capacity"] = "true"
		}
		return []audit.Event{registrationEvent(audit.ActionRegistrationPromoted, before, reg, meta)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPromotion(string(models.PromotionManual))
	s.logger.InfoContext(ctx, "waitlisted registration promoted",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", registrationID.String(),
		"trigger", models.PromotionManual,
		"over_capacity", result.Warning != "",
	)
	s.notify(after, notify.KindPromoted, result.Registration)
	s.invalidateAvailability(after, existing.EventID)
	return result, nil
}
