package models

import (
	"slices"
	"strings"
	"time"

	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// EventStatus is the editorial lifecycle status stored on an event. The
// operational status shown to members is derived from it together with the
// event's timestamps (see internal/event/status).
type EventStatus string

const (
	EventStatusDraft            EventStatus = "DRAFT"
	EventStatusPendingApproval  EventStatus = "PENDING_APPROVAL"
	EventStatusChangesRequested EventStatus = "CHANGES_REQUESTED"
	EventStatusApproved         EventStatus = "APPROVED"
	EventStatusPublished        EventStatus = "PUBLISHED"
	EventStatusCanceled         EventStatus = "CANCELED"
	EventStatusArchived         EventStatus = "ARCHIVED"
)

// ParseEventStatus validates a stored or submitted status string.
func ParseEventStatus(s string) (EventStatus, error) {
	status := EventStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case EventStatusDraft, EventStatusPendingApproval, EventStatusChangesRequested,
		EventStatusApproved, EventStatusPublished, EventStatusCanceled, EventStatusArchived:
		return status, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid event status: "+s)
}

// Event is the subset of an event record the admission core reads.
// Optional timestamps are pointers; StartTime is required for scheduled events
// but may be zero for events still being drafted.
type Event struct {
	ID                   id.EventID
	Title                string
	Status               EventStatus
	PublishAt            *time.Time
	PublishedAt          *time.Time
	RequiresRegistration bool
	RegistrationOpensAt  *time.Time
	RegistrationDeadline *time.Time
	StartTime            time.Time
	EndTime              *time.Time
	// SponsorCommittees lists the sponsoring and co-sponsoring committees.
	SponsorCommittees []id.CommitteeID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsSponsoredBy reports whether committeeID sponsors or co-sponsors the event.
func (e *Event) IsSponsoredBy(committeeID id.CommitteeID) bool {
	return slices.Contains(e.SponsorCommittees, committeeID)
}
