package service

import (
	"time"

	"github.com/google/uuid"

	"clubhouse/internal/eligibility"
	eventmodels "clubhouse/internal/event/models"
	"clubhouse/internal/event/status"
	membermodels "clubhouse/internal/member/models"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
)

func (s *ServiceSuite) TestGetEligibility() {
	standard := s.standardTier(10)
	sponsor := s.tier("SPONSOR", eventmodels.CategorySponsorCommittee, 10)
	retired := s.tier("RETIRED", eventmodels.CategoryMemberStandard, 10)
	retired.IsActive = false
	s.Require().NoError(s.store.SaveTier(s.ctx, retired))

	reasons := func(view []eligibility.Result) []eligibility.ReasonCode {
		out := make([]eligibility.ReasonCode, len(view))
		for i, r := range view {
			out[i] = r.Reason
		}
		return out
	}
	verdicts := func(memberID id.MemberID) []eligibility.Result {
		view, err := s.service.GetEligibility(s.ctx, s.event.ID, memberID)
		s.Require().NoError(err)
		out := make([]eligibility.Result, len(view.TicketTypes))
		for i, tt := range view.TicketTypes {
			out[i] = tt.Eligibility
		}
		return out
	}

	s.Run("lists active tiers only", func() {
		view, err := s.service.GetEligibility(s.ctx, s.event.ID, s.activeMember())
		s.Require().NoError(err)
		s.Require().Len(view.TicketTypes, 2)
		s.Equal(standard.ID, view.TicketTypes[0].TierID)
		s.Equal(sponsor.ID, view.TicketTypes[1].TierID)
	})

	s.Run("active member outside the sponsor committee", func() {
		s.Equal([]eligibility.ReasonCode{
			eligibility.ReasonMemberOnEventDate,
			eligibility.ReasonNotSponsorCommitteeMember,
		}, reasons(verdicts(s.activeMember())))
	})

	s.Run("overrides apply per tier", func() {
		lapsed := s.member(membermodels.MembershipLapsed)
		_, err := s.service.SetOverride(s.ctx,
			eligibility.OverrideKey{MemberID: lapsed, EventID: s.event.ID, TierID: standard.ID},
			eligibility.OverrideAllow, "past president")
		s.Require().NoError(err)

		got := verdicts(lapsed)
		s.True(got[0].Allowed)
		s.Equal(eligibility.ReasonOverrideAllowed, got[0].Reason)
		s.False(got[1].Allowed)
	})

	s.Run("unknown member is never allowed", func() {
		for _, r := range verdicts(id.MemberID(uuid.New())) {
			s.False(r.Allowed)
			s.Equal(eligibility.ReasonNotAMember, r.Reason)
		}
	})

	s.Run("unknown event", func() {
		_, err := s.service.GetEligibility(s.ctx, id.EventID(uuid.New()), s.activeMember())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestOverrides() {
	tier := s.standardTier(5)
	member := s.activeMember()
	key := eligibility.OverrideKey{MemberID: member, EventID: s.event.ID, TierID: tier.ID}

	s.Run("reason is required", func() {
		_, err := s.service.SetOverride(s.ctx, key, eligibility.OverrideDeny, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("outcome must be known", func() {
		_, err := s.service.SetOverride(s.ctx, key, eligibility.OverrideOutcome("MAYBE"), "why")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown member", func() {
		other := key
		other.MemberID = id.MemberID(uuid.New())
		_, err := s.service.SetOverride(s.ctx, other, eligibility.OverrideAllow, "why")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("set replaces and clear removes", func() {
		_, err := s.service.SetOverride(s.ctx, key, eligibility.OverrideDeny, "first")
		s.Require().NoError(err)
		_, err = s.service.SetOverride(s.ctx, key, eligibility.OverrideAllow, "second")
		s.Require().NoError(err)

		stored, err := s.store.FindOverride(s.ctx, key)
		s.Require().NoError(err)
		s.Equal(eligibility.OverrideAllow, stored.Outcome)
		s.Equal("second", stored.Reason)

		s.Require().NoError(s.service.ClearOverride(s.ctx, key))
		err = s.service.ClearOverride(s.ctx, key)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

		all, err := s.auditStore.ListAll(s.ctx)
		s.Require().NoError(err)
		var actions []audit.Action
		for _, ev := range all {
			if ev.ResourceType == audit.ResourceOverride {
				actions = append(actions, ev.Action)
			}
		}
		s.Equal([]audit.Action{audit.ActionOverrideSet, audit.ActionOverrideSet, audit.ActionOverrideCleared}, actions)
	})
}

func (s *ServiceSuite) TestWaitlist() {
	tier := s.standardTier(1)
	s.register(s.activeMember(), tier)
	first := s.register(s.activeMember(), tier)
	second := s.register(s.activeMember(), tier)

	got, err := s.service.Waitlist(s.ctx, s.event.ID, tier.ID)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(first.Registration.ID, got[0].ID)
	s.Equal(second.Registration.ID, got[1].ID)
}

func (s *ServiceSuite) TestAvailability() {
	tier := s.standardTier(2)
	s.register(s.activeMember(), tier)
	s.register(s.activeMember(), tier)
	s.register(s.activeMember(), tier)

	summary, err := s.service.Availability(s.ctx, s.event.ID)
	s.Require().NoError(err)
	s.Equal(tiermetrics.CapacityWaitlisted, summary.CapacityStatus)
	m, ok := summary.ForTier(tier.ID)
	s.Require().True(ok)
	s.Equal(2, m.Sold)
	s.Equal(0, m.Remaining)
	s.Equal(1, m.Waitlisted)
	s.True(m.IsFull)

	_, err = s.service.Availability(s.ctx, id.EventID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestEventStatus() {
	snap, err := s.service.EventStatus(s.ctx, s.event.ID)
	s.Require().NoError(err)
	s.Equal(status.OperationalOpenForRegistration, snap.Operational)
	s.Equal(status.VisibilityVisible, snap.Visibility)
	s.Equal(status.RegistrationOpen, snap.Registration)

	_, err = s.service.EventStatus(s.ctx, id.EventID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestScheduleDefaults() {
	loc, err := time.LoadLocation("America/New_York")
	s.Require().NoError(err)
	svc := s.newService(WithLocation(loc))

	// 2026-03-02 is a Monday.
	sched := svc.ScheduleDefaults(s.ctx, true)
	s.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, loc), sched.PublishAt)
	s.Require().NotNil(sched.RegistrationOpensAt)
	s.Equal(time.Date(2026, 3, 10, 8, 0, 0, 0, loc), *sched.RegistrationOpensAt)

	open := svc.ScheduleDefaults(s.ctx, false)
	s.True(open.PublishAt.Equal(s.now))
	s.Nil(open.RegistrationOpensAt)
}
