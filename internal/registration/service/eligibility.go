package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"clubhouse/internal/eligibility"
	eventmodels "clubhouse/internal/event/models"
	membermodels "clubhouse/internal/member/models"
	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/sentinel"
)

// GetEligibility evaluates memberID against every active tier of an event.
// A member with no record is reported NOT_A_MEMBER on every tier rather than
// failing the request.
func (s *Service) GetEligibility(ctx context.Context, eventID id.EventID, memberID id.MemberID) (_ *models.EligibilityView, err error) {
	ctx, end := s.startOp(ctx, "GetEligibility",
		attribute.String("event_id", eventID.String()),
		attribute.String("member_id", memberID.String()))
	defer end(&err)

	if eventID.IsNil() || memberID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "event and member are required")
	}

	var (
		event     *eventmodels.Event
		tiers     []*eventmodels.TicketTier
		member    *membermodels.Member
		overrides []*eligibility.Override
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.store.FindEvent(gctx, eventID)
		if err != nil {
			return loadErr(err, "event")
		}
		event = e
		return nil
	})
	g.Go(func() error {
		t, err := s.store.ListTiers(gctx, eventID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket tiers")
		}
		tiers = t
		return nil
	})
	g.Go(func() error {
		m, err := s.store.FindMember(gctx, memberID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
		}
		member = m
		return nil
	})
	g.Go(func() error {
		o, err := s.store.ListOverrides(gctx, memberID, eventID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load eligibility overrides")
		}
		overrides = o
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byTier := make(map[id.TierID]*eligibility.Override, len(overrides))
	for _, o := range overrides {
		byTier[o.TierID] = o
	}
	snapshot := eligibility.SnapshotFor(member, event)

	view := &models.EligibilityView{EventID: eventID, MemberID: memberID}
	for _, tier := range tiers {
		if !tier.IsActive {
			continue
		}
		view.TicketTypes = append(view.TicketTypes, models.TicketTypeEligibility{
			TierID:      tier.ID,
			Code:        tier.Code,
			Name:        tier.Name,
			Eligibility: eligibility.Evaluate(snapshot, eligibility.TierFor(tier, event), byTier[tier.ID]),
		})
	}
	return view, nil
}
