package service

import (
	"sync"

	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

func (s *ServiceSuite) TestConcurrentRegistrationsRespectCapacity() {
	const quantity, callers = 3, 20
	tier := s.standardTier(quantity)
	members := make([]id.MemberID, callers)
	for i := range members {
		members[i] = s.activeMember()
	}

	var wg sync.WaitGroup
	results := make([]*models.RegisterResult, callers)
	errs := make([]error, callers)
	for i, m := range members {
		wg.Add(1)
		go func(i int, m id.MemberID) {
			defer wg.Done()
			results[i], errs[i] = s.service.Register(s.ctx, s.event.ID, m, tier.ID)
		}(i, m)
	}
	wg.Wait()

	confirmed, positions := 0, make(map[int]bool)
	for i := range results {
		s.Require().NoError(errs[i])
		switch results[i].Status {
		case models.StatusConfirmed:
			confirmed++
		case models.StatusWaitlisted:
			positions[*results[i].WaitlistPosition] = true
		}
	}
	s.Equal(quantity, confirmed)
	s.Len(positions, callers-quantity, "waitlist positions must be unique")
	for p := 1; p <= callers-quantity; p++ {
		s.True(positions[p], "missing waitlist position %d", p)
	}
	s.assertTierInvariants(tier)
}

func (s *ServiceSuite) TestConcurrentDuplicateRegistration() {
	tier := s.standardTier(10)
	member := s.activeMember()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.Register(s.ctx, s.event.ID, member, tier.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(ReasonAlreadyRegistered, dErrors.ReasonOf(err))
	}
	s.Equal(1, succeeded)
}

func (s *ServiceSuite) TestConcurrentCancellationsDrainWaitlistInOrder() {
	tier := s.standardTier(2)
	holders := []id.MemberID{s.activeMember(), s.activeMember()}
	for _, m := range holders {
		s.register(m, tier)
	}
	queued := []id.RegistrationID{
		s.register(s.activeMember(), tier).Registration.ID,
		s.register(s.activeMember(), tier).Registration.ID,
		s.register(s.activeMember(), tier).Registration.ID,
	}

	var wg sync.WaitGroup
	for _, m := range holders {
		wg.Add(1)
		go func(m id.MemberID) {
			defer wg.Done()
			s.NoError(s.service.Cancel(s.ctx, s.event.ID, m))
		}(m)
	}
	wg.Wait()

	for _, rid := range queued[:2] {
		reg, err := s.store.FindRegistration(s.ctx, rid)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, reg.Status)
	}
	s.Equal([]id.RegistrationID{queued[2]}, s.waitlistIDs(tier))
	s.assertTierInvariants(tier)
}
