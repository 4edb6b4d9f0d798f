package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"clubhouse/internal/eligibility"
	"clubhouse/internal/event/status"
	membermodels "clubhouse/internal/member/models"
	"clubhouse/internal/registration/models"
	"clubhouse/internal/registration/notify"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/platform/sentinel"
	"clubhouse/pkg/requestcontext"
)

// Register admits memberID to a tier of an event: CONFIRMED while the tier
// has a place left, otherwise WAITLISTED at the back of the queue.
//
// Checks run in order: the event and tier exist, registration is open, the
// member holds no active registration for the event, and the member is
// eligible for the tier. Only the capacity decision runs in the tier's
// critical section, against a live snapshot.
func (s *Service) Register(ctx context.Context, eventID id.EventID, memberID id.MemberID, tierID id.TierID) (_ *models.RegisterResult, err error) {
	ctx, end := s.startOp(ctx, "Register",
		attribute.String("event_id", eventID.String()),
		attribute.String("member_id", memberID.String()),
		attribute.String("tier_id", tierID.String()))
	defer end(&err)

	if eventID.IsNil() || memberID.IsNil() || tierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "event, member and ticket tier are required")
	}

	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, loadErr(err, "event")
	}
	tier, err := s.store.FindTier(ctx, eventID, tierID)
	if err != nil {
		return nil, loadErr(err, "ticket tier")
	}
	if !tier.IsActive {
		return nil, dErrors.New(dErrors.CodeNotFound, "ticket tier not found")
	}

	now := requestcontext.Now(ctx)
	if snap := status.Derive(event, now); !snap.AcceptsRegistrations() {
		return nil, dErrors.NewWithReason(dErrors.CodeValidation, ReasonRegistrationNotOpen,
			fmt.Sprintf("registration is not open (event is %s)", snap.Operational))
	}

	switch _, err := s.store.FindActiveRegistration(ctx, memberID, eventID); {
	case err == nil:
		return nil, dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyRegistered,
			"member already holds an active registration for this event")
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing registration")
	}

	member, err := s.findMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	override, err := s.findOverride(ctx, eligibility.OverrideKey{MemberID: memberID, EventID: eventID, TierID: tierID})
	if err != nil {
		return nil, err
	}
	verdict := eligibility.Evaluate(eligibility.SnapshotFor(member, event), eligibility.TierFor(tier, event), override)
	if !verdict.Allowed {
		msg := "member is not eligible for this ticket tier"
		if verdict.Detail != "" {
			msg = verdict.Detail
		}
		return nil, dErrors.NewWithReason(dErrors.CodeIneligible, string(verdict.Reason), msg)
	}

	var reg *models.Registration
	after, err := s.runSection(ctx, "register", eventID, tierID, func(txCtx context.Context) ([]audit.Event, error) {
		_, regs, m, ok, err := s.liveTierMetrics(txCtx, eventID, tierID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeNotFound, "ticket tier not found")
		}

		admittedAt := admissionTime(now, regs)
		var candidate *models.Registration
		if m.Remaining > 0 {
			candidate = models.NewConfirmed(memberID, eventID, tierID, admittedAt)
		} else {
			candidate, err = models.NewWaitlisted(memberID, eventID, tierID, maxWaitlistPosition(regs)+1, admittedAt)
			if err != nil {
				return nil, err
			}
		}
		if err := s.store.InsertRegistration(txCtx, candidate); err != nil {
			return nil, err
		}
		reg = candidate

		action := audit.ActionRegistrationConfirmed
		if candidate.Status == models.StatusWaitlisted {
			action = audit.ActionRegistrationWaitlisted
		}
		return []audit.Event{registrationEvent(action, nil, candidate, nil)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRegistration(string(reg.Status))
	s.logger.InfoContext(ctx, "registration admitted",
		"request_id", requestcontext.RequestID(ctx),
		"registration_id", reg.ID.String(),
		"event_id", eventID.String(),
		"tier_id", tierID.String(),
		"member_id", memberID.String(),
		"status", reg.Status,
		"waitlist_position", reg.Position(),
	)
	kind := notify.KindConfirmed
	if reg.Status == models.StatusWaitlisted {
		kind = notify.KindWaitlisted
	}
	s.notify(after, kind, reg)
	s.invalidateAvailability(after, eventID)

	return &models.RegisterResult{
		Registration:     reg,
		Status:           reg.Status,
		WaitlistPosition: reg.WaitlistPosition,
	}, nil
}

// admissionTime stamps a registration admitted under the tier lock. Requests
// can reach the lock out of arrival order, so the stamp never goes behind an
// earlier admission on the tier; waitlist position and registeredAt then
// agree.
func admissionTime(now time.Time, regs []*models.Registration) time.Time {
	for _, r := range regs {
		if r.RegisteredAt.After(now) {
			now = r.RegisteredAt
		}
	}
	return now
}

// findMember returns nil without error when the member does not exist; the
// evaluator turns that into NOT_A_MEMBER.
func (s *Service) findMember(ctx context.Context, memberID id.MemberID) (*membermodels.Member, error) {
	m, err := s.store.FindMember(ctx, memberID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	return m, nil
}

func (s *Service) findOverride(ctx context.Context, key eligibility.OverrideKey) (*eligibility.Override, error) {
	o, err := s.store.FindOverride(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load eligibility override")
	}
	return o, nil
}
