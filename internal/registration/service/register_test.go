package service

import (
	"time"

	"github.com/google/uuid"

	"clubhouse/internal/eligibility"
	eventmodels "clubhouse/internal/event/models"
	membermodels "clubhouse/internal/member/models"
	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/requestcontext"
)

func (s *ServiceSuite) TestRegister_Validation() {
	tier := s.standardTier(5)
	member := s.activeMember()

	s.Run("missing ids", func() {
		_, err := s.service.Register(s.ctx, id.EventID{}, member, tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown event", func() {
		_, err := s.service.Register(s.ctx, id.EventID(uuid.New()), member, tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown tier", func() {
		_, err := s.service.Register(s.ctx, s.event.ID, member, id.TierID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("inactive tier", func() {
		inactive := s.tier("OLD", eventmodels.CategoryMemberStandard, 5)
		inactive.IsActive = false
		s.Require().NoError(s.store.SaveTier(s.ctx, inactive))

		_, err := s.service.Register(s.ctx, s.event.ID, member, inactive.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestRegister_RequiresOpenRegistration() {
	tier := s.standardTier(5)
	member := s.activeMember()

	cases := []struct {
		name   string
		mutate func(e *eventmodels.Event)
	}{
		{"draft event", func(e *eventmodels.Event) { e.Status = eventmodels.EventStatusDraft }},
		{"registration not yet open", func(e *eventmodels.Event) {
			opens := s.now.Add(time.Hour)
			e.RegistrationOpensAt = &opens
		}},
		{"deadline passed", func(e *eventmodels.Event) {
			deadline := s.now.Add(-time.Minute)
			e.RegistrationDeadline = &deadline
		}},
		{"event cancelled", func(e *eventmodels.Event) { e.Status = eventmodels.EventStatusCanceled }},
		{"registration not required", func(e *eventmodels.Event) { e.RequiresRegistration = false }},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			e := *s.event
			tc.mutate(&e)
			s.Require().NoError(s.store.SaveEvent(s.ctx, &e))
			defer func() { s.Require().NoError(s.store.SaveEvent(s.ctx, s.event)) }()

			_, err := s.service.Register(s.ctx, s.event.ID, member, tier.ID)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Equal(ReasonRegistrationNotOpen, dErrors.ReasonOf(err))
		})
	}
}

func (s *ServiceSuite) TestRegister_AlreadyRegistered() {
	tier := s.standardTier(1)
	other := s.tier("VIP", eventmodels.CategoryMemberStandard, 5)
	member := s.activeMember()
	s.register(member, tier)

	s.Run("same tier", func() {
		_, err := s.service.Register(s.ctx, s.event.ID, member, tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(ReasonAlreadyRegistered, dErrors.ReasonOf(err))
	})

	s.Run("another tier of the same event", func() {
		_, err := s.service.Register(s.ctx, s.event.ID, member, other.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("again after cancelling", func() {
		s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, member))
		res := s.register(member, tier)
		s.Equal(models.StatusConfirmed, res.Status)
	})
}

func (s *ServiceSuite) TestRegister_Eligibility() {
	tier := s.standardTier(5)

	s.Run("lapsed member is denied with the evaluator's reason", func() {
		lapsed := s.member(membermodels.MembershipLapsed)
		_, err := s.service.Register(s.ctx, s.event.ID, lapsed, tier.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Equal(string(eligibility.ReasonNotMemberOnEventDate), dErrors.ReasonOf(err))

		regs, err := s.store.ListTierRegistrations(s.ctx, s.event.ID, tier.ID)
		s.Require().NoError(err)
		s.Empty(regs, "a denied request must leave no registration behind")
	})

	s.Run("allow override admits a lapsed member", func() {
		lapsed := s.member(membermodels.MembershipLapsed)
		key := eligibility.OverrideKey{MemberID: lapsed, EventID: s.event.ID, TierID: tier.ID}
		_, err := s.service.SetOverride(s.ctx, key, eligibility.OverrideAllow, "life member")
		s.Require().NoError(err)

		res := s.register(lapsed, tier)
		s.Equal(models.StatusConfirmed, res.Status)
	})

	s.Run("deny override rejects an active member", func() {
		active := s.activeMember()
		key := eligibility.OverrideKey{MemberID: active, EventID: s.event.ID, TierID: tier.ID}
		_, err := s.service.SetOverride(s.ctx, key, eligibility.OverrideDeny, "conduct")
		s.Require().NoError(err)

		_, err = s.service.Register(s.ctx, s.event.ID, active, tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Equal(string(eligibility.ReasonOverrideDenied), dErrors.ReasonOf(err))
	})

	s.Run("unknown member fails closed", func() {
		_, err := s.service.Register(s.ctx, s.event.ID, id.MemberID(uuid.New()), tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeIneligible))
		s.Equal(string(eligibility.ReasonNotAMember), dErrors.ReasonOf(err))
	})

	s.Run("sponsor committee tier", func() {
		sponsor := s.tier("SPONSOR", eventmodels.CategorySponsorCommittee, 5)
		outsider := s.activeMember()
		_, err := s.service.Register(s.ctx, s.event.ID, outsider, sponsor.ID)
		s.Equal(string(eligibility.ReasonNotSponsorCommitteeMember), dErrors.ReasonOf(err))

		insider := s.member(membermodels.MembershipActive, s.committee)
		res := s.register(insider, sponsor)
		s.Equal(models.StatusConfirmed, res.Status)
	})
}

func (s *ServiceSuite) TestRegister_CapacityAndWaitlist() {
	tier := s.standardTier(2)

	first := s.register(s.activeMember(), tier)
	second := s.register(s.activeMember(), tier)
	s.Equal(models.StatusConfirmed, first.Status)
	s.Equal(models.StatusConfirmed, second.Status)
	s.Nil(first.WaitlistPosition)

	third := s.register(s.activeMember(), tier)
	s.Equal(models.StatusWaitlisted, third.Status)
	s.Require().NotNil(third.WaitlistPosition)
	s.Equal(1, *third.WaitlistPosition)

	fourth := s.register(s.activeMember(), tier)
	s.Equal(2, *fourth.WaitlistPosition)

	s.assertTierInvariants(tier)

	events, err := s.auditStore.ListByResource(s.ctx, audit.ResourceRegistration, third.Registration.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionRegistrationWaitlisted, events[0].Action)
	s.Nil(events[0].Before)
}

func (s *ServiceSuite) TestRegister_ZeroQuantityTierWaitlistsEveryone() {
	tier := s.standardTier(0)
	res := s.register(s.activeMember(), tier)
	s.Equal(models.StatusWaitlisted, res.Status)
	s.Equal(1, *res.WaitlistPosition)
}

func (s *ServiceSuite) TestRegister_WaitlistOrderMatchesRegisteredAt() {
	tier := s.standardTier(0)
	late, early := s.activeMember(), s.activeMember()

	// The later request wins the tier lock first.
	lateCtx := requestcontext.WithTime(s.ctx, s.now.Add(time.Second))
	first, err := s.service.Register(lateCtx, s.event.ID, late, tier.ID)
	s.Require().NoError(err)
	second, err := s.service.Register(s.ctx, s.event.ID, early, tier.ID)
	s.Require().NoError(err)

	s.Equal(1, first.Registration.Position())
	s.Equal(2, second.Registration.Position())
	s.False(second.Registration.RegisteredAt.Before(first.Registration.RegisteredAt),
		"a later waitlist position never carries an earlier registration time")

	waitlist, err := s.store.ListWaitlist(s.ctx, s.event.ID, tier.ID)
	s.Require().NoError(err)
	s.Require().Len(waitlist, 2)
	for i := 1; i < len(waitlist); i++ {
		s.False(waitlist[i].RegisteredAt.Before(waitlist[i-1].RegisteredAt))
	}

	byTime, err := s.store.ListTierRegistrations(s.ctx, s.event.ID, tier.ID)
	s.Require().NoError(err)
	s.Require().Len(byTime, 2)
	s.Equal(s.waitlistIDs(tier), []id.RegistrationID{byTime[0].ID, byTime[1].ID},
		"time-ordered and queue-ordered listings agree")
}

func (s *ServiceSuite) TestRegister_StampsRequestTimeWhenInOrder() {
	tier := s.standardTier(1)
	res := s.register(s.activeMember(), tier)
	s.True(res.Registration.RegisteredAt.Equal(s.now))

	later := requestcontext.WithTime(s.ctx, s.now.Add(time.Minute))
	next, err := s.service.Register(later, s.event.ID, s.activeMember(), tier.ID)
	s.Require().NoError(err)
	s.True(next.Registration.RegisteredAt.Equal(s.now.Add(time.Minute)))
}
