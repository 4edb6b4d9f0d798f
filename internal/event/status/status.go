// Package status derives the lifecycle state members see for an event from
// its editorial status and timestamps. All functions are pure and take "now"
// explicitly.
package status

import (
	"time"

	"clubhouse/internal/event/models"
)

// Operational is the single derived lifecycle state of an event at an instant.
type Operational string

const (
	OperationalCanceled            Operational = "CANCELED"
	OperationalArchived            Operational = "ARCHIVED"
	OperationalDraft               Operational = "DRAFT"
	OperationalPendingApproval     Operational = "PENDING_APPROVAL"
	OperationalChangesRequested    Operational = "CHANGES_REQUESTED"
	OperationalCompleted           Operational = "COMPLETED"
	OperationalInProgress          Operational = "IN_PROGRESS"
	OperationalScheduled           Operational = "SCHEDULED"
	OperationalPublished           Operational = "PUBLISHED"
	OperationalAnnouncedNotOpen    Operational = "ANNOUNCED_NOT_OPEN"
	OperationalRegistrationClosed  Operational = "REGISTRATION_CLOSED"
	OperationalOpenForRegistration Operational = "OPEN_FOR_REGISTRATION"
)

// Visibility is the simplified publication state.
type Visibility string

const (
	VisibilityDraft     Visibility = "DRAFT"
	VisibilityScheduled Visibility = "SCHEDULED"
	VisibilityVisible   Visibility = "VISIBLE"
)

// Registration is the simplified registration-window state.
type Registration string

const (
	RegistrationNotRequired Registration = "NOT_REQUIRED"
	RegistrationScheduled   Registration = "SCHEDULED"
	RegistrationOpen        Registration = "OPEN"
	RegistrationClosed      Registration = "CLOSED"
)

// Snapshot bundles the three derived states for one instant.
type Snapshot struct {
	Operational  Operational
	Visibility   Visibility
	Registration Registration
}

// Derive computes all three states for e at now.
func Derive(e *models.Event, now time.Time) Snapshot {
	return Snapshot{
		Operational:  DeriveOperational(e, now),
		Visibility:   DeriveVisibility(e, now),
		Registration: DeriveRegistration(e, now),
	}
}

// AcceptsRegistrations reports whether a member may register right now.
func (s Snapshot) AcceptsRegistrations() bool {
	return s.Operational == OperationalOpenForRegistration
}

// DeriveOperational evaluates the lifecycle precedence chain. Editorial
// terminal states win, then the event's own clock, then publication, then the
// registration window.
func DeriveOperational(e *models.Event, now time.Time) Operational {
	switch e.Status {
	case models.EventStatusCanceled:
		return OperationalCanceled
	case models.EventStatusArchived:
		return OperationalArchived
	case models.EventStatusDraft:
		return OperationalDraft
	case models.EventStatusPendingApproval:
		return OperationalPendingApproval
	case models.EventStatusChangesRequested:
		return OperationalChangesRequested
	}

	if e.EndTime != nil && e.EndTime.Before(now) {
		return OperationalCompleted
	}
	if !e.StartTime.IsZero() && !e.StartTime.After(now) {
		return OperationalInProgress
	}

	visible := DeriveVisibility(e, now) == VisibilityVisible
	if !e.RequiresRegistration {
		// No registration gating: the event is either waiting for publication
		// or simply published.
		if !visible {
			return OperationalScheduled
		}
		return OperationalPublished
	}
	if !visible {
		return OperationalAnnouncedNotOpen
	}

	switch DeriveRegistration(e, now) {
	case RegistrationScheduled:
		return OperationalAnnouncedNotOpen
	case RegistrationClosed:
		return OperationalRegistrationClosed
	default:
		return OperationalOpenForRegistration
	}
}

// DeriveVisibility looks only at the editorial status and publication times.
func DeriveVisibility(e *models.Event, now time.Time) Visibility {
	switch e.Status {
	case models.EventStatusDraft, models.EventStatusPendingApproval, models.EventStatusChangesRequested:
		return VisibilityDraft
	case models.EventStatusCanceled, models.EventStatusArchived:
		if e.PublishedAt != nil {
			return VisibilityVisible
		}
		return VisibilityDraft
	}

	if e.PublishedAt != nil && !e.PublishedAt.After(now) {
		return VisibilityVisible
	}
	if e.PublishAt != nil && e.PublishAt.After(now) {
		return VisibilityScheduled
	}
	if e.Status == models.EventStatusPublished {
		return VisibilityVisible
	}
	if e.Status == models.EventStatusApproved && e.PublishAt != nil {
		return VisibilityVisible
	}
	return VisibilityDraft
}

// DeriveRegistration looks only at the registration window.
func DeriveRegistration(e *models.Event, now time.Time) Registration {
	if !e.RequiresRegistration {
		return RegistrationNotRequired
	}
	if e.RegistrationOpensAt != nil && now.Before(*e.RegistrationOpensAt) {
		return RegistrationScheduled
	}
	if closesAt, ok := registrationClosesAt(e); ok && closesAt.Before(now) {
		return RegistrationClosed
	}
	return RegistrationOpen
}

// registrationClosesAt is the deadline, falling back to the start time.
func registrationClosesAt(e *models.Event) (time.Time, bool) {
	if e.RegistrationDeadline != nil {
		return *e.RegistrationDeadline, true
	}
	if !e.StartTime.IsZero() {
		return e.StartTime, true
	}
	return time.Time{}, false
}
