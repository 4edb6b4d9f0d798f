package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clubhouse/internal/event/models"
)

type StatusSuite struct {
	suite.Suite
	now time.Time
}

func TestStatusSuite(t *testing.T) {
	suite.Run(t, new(StatusSuite))
}

func (s *StatusSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (s *StatusSuite) at(d time.Duration) *time.Time {
	t := s.now.Add(d)
	return &t
}

// openEvent is a published, registration-required event whose window is open.
func (s *StatusSuite) openEvent() *models.Event {
	return &models.Event{
		Status:               models.EventStatusPublished,
		PublishedAt:          s.at(-72 * time.Hour),
		RequiresRegistration: true,
		RegistrationOpensAt:  s.at(-48 * time.Hour),
		RegistrationDeadline: s.at(48 * time.Hour),
		StartTime:            s.now.Add(96 * time.Hour),
		EndTime:              s.at(100 * time.Hour),
	}
}

func (s *StatusSuite) TestOperationalPrecedence() {
	s.Run("editorial terminal states win over timestamps", func() {
		e := s.openEvent()
		e.Status = models.EventStatusCanceled
		e.EndTime = s.at(-time.Hour)
		s.Equal(OperationalCanceled, DeriveOperational(e, s.now))

		e.Status = models.EventStatusArchived
		s.Equal(OperationalArchived, DeriveOperational(e, s.now))
	})

	s.Run("approval workflow states", func() {
		for status, want := range map[models.EventStatus]Operational{
			models.EventStatusDraft:            OperationalDraft,
			models.EventStatusPendingApproval:  OperationalPendingApproval,
			models.EventStatusChangesRequested: OperationalChangesRequested,
		} {
			e := s.openEvent()
			e.Status = status
			s.Equal(want, DeriveOperational(e, s.now), status)
		}
	})

	s.Run("ended event is completed", func() {
		e := s.openEvent()
		e.StartTime = s.now.Add(-3 * time.Hour)
		e.EndTime = s.at(-time.Hour)
		s.Equal(OperationalCompleted, DeriveOperational(e, s.now))
	})

	s.Run("started event is in progress", func() {
		e := s.openEvent()
		e.StartTime = s.now
		s.Equal(OperationalInProgress, DeriveOperational(e, s.now))
	})

	s.Run("window not yet open", func() {
		e := s.openEvent()
		e.RegistrationOpensAt = s.at(time.Hour)
		s.Equal(OperationalAnnouncedNotOpen, DeriveOperational(e, s.now))
	})

	s.Run("deadline passed", func() {
		e := s.openEvent()
		e.RegistrationDeadline = s.at(-time.Minute)
		s.Equal(OperationalRegistrationClosed, DeriveOperational(e, s.now))
	})

	s.Run("deadline falls back to start time", func() {
		e := s.openEvent()
		e.RegistrationDeadline = nil
		s.Equal(OperationalOpenForRegistration, DeriveOperational(e, s.now))
		s.Equal(RegistrationClosed, DeriveRegistration(e, e.StartTime.Add(time.Second)))
	})

	s.Run("open window", func() {
		snap := Derive(s.openEvent(), s.now)
		s.Equal(OperationalOpenForRegistration, snap.Operational)
		s.Equal(VisibilityVisible, snap.Visibility)
		s.Equal(RegistrationOpen, snap.Registration)
		s.True(snap.AcceptsRegistrations())
	})

	s.Run("unpublished event never opens registration", func() {
		e := s.openEvent()
		e.Status = models.EventStatusApproved
		e.PublishedAt = nil
		e.PublishAt = s.at(time.Hour)
		snap := Derive(e, s.now)
		s.Equal(VisibilityScheduled, snap.Visibility)
		s.Equal(RegistrationOpen, snap.Registration)
		s.Equal(OperationalAnnouncedNotOpen, snap.Operational)
		s.False(snap.AcceptsRegistrations())
	})
}

func (s *StatusSuite) TestNoRegistrationRequired() {
	e := &models.Event{
		Status:               models.EventStatusApproved,
		PublishAt:            s.at(24 * time.Hour),
		RequiresRegistration: false,
		RegistrationOpensAt:  s.at(time.Hour),
		RegistrationDeadline: s.at(-time.Hour),
		StartTime:            s.now.Add(10 * 24 * time.Hour),
	}
	forbidden := []Operational{
		OperationalAnnouncedNotOpen,
		OperationalOpenForRegistration,
		OperationalRegistrationClosed,
	}

	for _, offset := range []time.Duration{-48 * time.Hour, 0, 25 * time.Hour, 9 * 24 * time.Hour, 11 * 24 * time.Hour} {
		now := s.now.Add(offset)
		snap := Derive(e, now)
		s.Equal(RegistrationNotRequired, snap.Registration)
		s.NotContains(forbidden, snap.Operational, "at %s", now)
		s.False(snap.AcceptsRegistrations())
	}

	s.Equal(OperationalScheduled, DeriveOperational(e, s.now))
	s.Equal(OperationalPublished, DeriveOperational(e, s.now.Add(25*time.Hour)))
}

func (s *StatusSuite) TestVisibility() {
	s.Run("draft-like statuses", func() {
		e := s.openEvent()
		e.Status = models.EventStatusPendingApproval
		s.Equal(VisibilityDraft, DeriveVisibility(e, s.now))
	})

	s.Run("canceled after publication stays visible", func() {
		e := s.openEvent()
		e.Status = models.EventStatusCanceled
		s.Equal(VisibilityVisible, DeriveVisibility(e, s.now))
		e.PublishedAt = nil
		s.Equal(VisibilityDraft, DeriveVisibility(e, s.now))
	})

	s.Run("approved with past publish time is visible", func() {
		e := s.openEvent()
		e.Status = models.EventStatusApproved
		e.PublishedAt = nil
		e.PublishAt = s.at(-time.Minute)
		s.Equal(VisibilityVisible, DeriveVisibility(e, s.now))
	})

	s.Run("approved without publish time is not visible", func() {
		e := s.openEvent()
		e.Status = models.EventStatusApproved
		e.PublishedAt = nil
		s.Equal(VisibilityDraft, DeriveVisibility(e, s.now))
	})
}

func (s *StatusSuite) TestCompositeNeverContradictsSubordinates() {
	statuses := []models.EventStatus{
		models.EventStatusApproved, models.EventStatusPublished,
	}
	for _, st := range statuses {
		for h := -120; h <= 120; h += 6 {
			e := s.openEvent()
			e.Status = st
			e.PublishedAt = nil
			e.PublishAt = s.at(-24 * time.Hour)
			now := s.now.Add(time.Duration(h) * time.Hour)
			snap := Derive(e, now)
			if snap.Operational == OperationalOpenForRegistration {
				s.Equal(VisibilityVisible, snap.Visibility)
				s.Equal(RegistrationOpen, snap.Registration)
			}
			if snap.Operational == OperationalRegistrationClosed {
				s.Equal(RegistrationClosed, snap.Registration)
			}
		}
	}
}
