package service

import (
	"github.com/google/uuid"

	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/testutil"
)

func (s *ServiceSuite) TestCancel_NoActiveRegistration() {
	tier := s.standardTier(2)
	member := s.activeMember()

	s.Run("never registered", func() {
		err := s.service.Cancel(s.ctx, s.event.ID, id.MemberID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cancelling twice", func() {
		s.register(member, tier)
		s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, member))

		err := s.service.Cancel(s.ctx, s.event.ID, member)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("missing ids", func() {
		err := s.service.Cancel(s.ctx, s.event.ID, id.MemberID{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestCancel_PromotesWaitlistHead() {
	tier := s.standardTier(2)
	var a, b, c id.MemberID
	var waitlisted *models.RegisterResult

	ok := testutil.Given(s, "a tier of two with both places taken and one waitlisted member", func() {
		a, b, c = s.activeMember(), s.activeMember(), s.activeMember()
		s.register(a, tier)
		s.register(b, tier)
		waitlisted = s.register(c, tier)
		s.Require().Equal(models.StatusWaitlisted, waitlisted.Status)
	})
	ok = ok && testutil.When(s, "a confirmed member cancels", func() {
		s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, a))
	})
	ok = ok && testutil.Then(s, "the waitlisted member is confirmed and the waitlist is empty", func() {
		reg, err := s.store.FindRegistration(s.ctx, waitlisted.Registration.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, reg.Status)
		s.Nil(reg.WaitlistPosition)
		s.Empty(s.waitlistIDs(tier))
		s.assertTierInvariants(tier)
	})
	_ = ok && testutil.And(s, "the promotion is audited as triggered by the cancellation", func() {
		events, err := s.auditStore.ListByResource(s.ctx, audit.ResourceRegistration, waitlisted.Registration.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 2)
		s.Equal(audit.ActionRegistrationPromoted, events[1].Action)
		s.Equal(string(models.PromotionOnCancel), events[1].Metadata["trigger"])
	})
}

func (s *ServiceSuite) TestCancel_PromotionKeepsQueueOrder() {
	tier := s.standardTier(1)
	holder := s.activeMember()
	s.register(holder, tier)
	first := s.register(s.activeMember(), tier)
	second := s.register(s.activeMember(), tier)

	s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, holder))

	promoted, err := s.store.FindRegistration(s.ctx, first.Registration.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, promoted.Status)

	s.Equal([]id.RegistrationID{second.Registration.ID}, s.waitlistIDs(tier))
	s.assertTierInvariants(tier)
}

func (s *ServiceSuite) TestCancel_WaitlistedCompactsQueue() {
	tier := s.standardTier(1)
	s.register(s.activeMember(), tier)

	members := []id.MemberID{s.activeMember(), s.activeMember(), s.activeMember()}
	regs := make([]id.RegistrationID, len(members))
	for i, m := range members {
		regs[i] = s.register(m, tier).Registration.ID
	}

	s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, members[1]))

	s.Equal([]id.RegistrationID{regs[0], regs[2]}, s.waitlistIDs(tier))
	s.assertTierInvariants(tier)

	cancelled, err := s.store.FindRegistration(s.ctx, regs[1])
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, cancelled.Status)
	s.Nil(cancelled.WaitlistPosition)
}

func (s *ServiceSuite) TestCancel_ManualPolicyDoesNotPromote() {
	s.service = s.newService(WithPromotionPolicy(PromotionManual))
	tier := s.standardTier(1)
	holder := s.activeMember()
	s.register(holder, tier)
	waitlisted := s.register(s.activeMember(), tier)

	s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, holder))

	reg, err := s.store.FindRegistration(s.ctx, waitlisted.Registration.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusWaitlisted, reg.Status)
	s.Equal(1, reg.Position())

	res, err := s.service.Promote(s.ctx, waitlisted.Registration.ID, false)
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, res.Status)
	s.Empty(res.Warning)
}

func (s *ServiceSuite) TestCancel_NoPromotionWhileTierOverCapacity() {
	tier := s.standardTier(1)
	holder := s.activeMember()
	s.register(holder, tier)
	forced := s.register(s.activeMember(), tier)
	queued := s.register(s.activeMember(), tier)

	_, err := s.service.Promote(s.ctx, forced.Registration.ID, true)
	s.Require().NoError(err)

	// Two confirmed for one place: a cancellation brings the tier back to
	// quantity but frees nothing for the queue.
	s.Require().NoError(s.service.Cancel(s.ctx, s.event.ID, holder))

	reg, err := s.store.FindRegistration(s.ctx, queued.Registration.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusWaitlisted, reg.Status)
	s.Equal(1, reg.Position())
}
