package service

import (
	"github.com/google/uuid"

	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
)

func (s *ServiceSuite) TestPromote_Rejections() {
	tier := s.standardTier(1)
	confirmed := s.register(s.activeMember(), tier)
	waitlisted := s.register(s.activeMember(), tier)

	s.Run("unknown registration", func() {
		_, err := s.service.Promote(s.ctx, id.RegistrationID(uuid.New()), false)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("confirmed registration", func() {
		_, err := s.service.Promote(s.ctx, confirmed.Registration.ID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(ReasonNotWaitlisted, dErrors.ReasonOf(err))
	})

	s.Run("full tier without override", func() {
		_, err := s.service.Promote(s.ctx, waitlisted.Registration.ID, false)
		s.True(dErrors.HasCode(err, dErrors.CodeCapacityExceeded))
		s.Equal(ReasonCapacityExceeded, dErrors.ReasonOf(err))

		reg, err := s.store.FindRegistration(s.ctx, waitlisted.Registration.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusWaitlisted, reg.Status)
		s.Equal(1, reg.Position())
	})

	s.Run("inactive tier", func() {
		tier.IsActive = false
		s.Require().NoError(s.store.SaveTier(s.ctx, tier))
		defer func() {
			tier.IsActive = true
			s.Require().NoError(s.store.SaveTier(s.ctx, tier))
		}()

		_, err := s.service.Promote(s.ctx, waitlisted.Registration.ID, true)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(ReasonTierInactive, dErrors.ReasonOf(err))
	})
}

func (s *ServiceSuite) TestPromote_OverrideCapacityWarns() {
	tier := s.standardTier(1)
	s.register(s.activeMember(), tier)
	first := s.register(s.activeMember(), tier)
	second := s.register(s.activeMember(), tier)

	res, err := s.service.Promote(s.ctx, first.Registration.ID, true)
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, res.Status)
	s.Nil(res.Registration.WaitlistPosition)
	s.Equal(1, res.RemainingWaitlist)
	s.Equal(0, res.SpotsAvailable)
	s.Contains(res.Warning, "over capacity")

	s.Equal([]id.RegistrationID{second.Registration.ID}, s.waitlistIDs(tier))
	reg, err := s.store.FindRegistration(s.ctx, second.Registration.ID)
	s.Require().NoError(err)
	s.Equal(1, reg.Position())

	events, err := s.auditStore.ListByResource(s.ctx, audit.ResourceRegistration, first.Registration.ID.String())
	s.Require().NoError(err)
	last := events[len(events)-1]
	s.Equal(audit.ActionRegistrationPromoted, last.Action)
	s.Equal("true", last.Metadata["override_capacity"])
	s.Equal(string(models.PromotionManual), last.Metadata["trigger"])
}

func (s *ServiceSuite) TestPromote_WithFreeCapacity() {
	tier := s.standardTier(1)
	s.register(s.activeMember(), tier)
	waitlisted := s.register(s.activeMember(), tier)
	s.register(s.activeMember(), tier)

	// Raising the quantity leaves places that only an explicit promotion fills.
	tier.Quantity = 3
	s.Require().NoError(s.store.SaveTier(s.ctx, tier))

	res, err := s.service.Promote(s.ctx, waitlisted.Registration.ID, false)
	s.Require().NoError(err)
	s.Empty(res.Warning)
	s.Equal(1, res.RemainingWaitlist)
	s.Equal(1, res.SpotsAvailable)
	s.assertTierInvariants(tier)
}
