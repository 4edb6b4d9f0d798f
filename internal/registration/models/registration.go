package models

import (
	"time"

	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// Status is a registration's admission state.
//
//	(none) -> CONFIRMED | WAITLISTED -> CANCELLED
//	WAITLISTED -> CONFIRMED (promotion)
//
// CANCELLED is terminal; the row is kept for audit and a member may register
// again with a new row. REFUNDED appears only on imported history and is
// treated like CANCELLED.
type Status string

const (
	StatusConfirmed  Status = "CONFIRMED"
	StatusWaitlisted Status = "WAITLISTED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// IsActive reports whether the registration still holds or awaits a place.
func (s Status) IsActive() bool {
	return s == StatusConfirmed || s == StatusWaitlisted
}

// Registration is one member's claim on a tier of an event.
type Registration struct {
	ID       id.RegistrationID
	MemberID id.MemberID
	EventID  id.EventID
	TierID   id.TierID
	Status   Status
	// WaitlistPosition is set iff Status is WAITLISTED; 1-based.
	WaitlistPosition *int
	RegisteredAt     time.Time
	CancelledAt      *time.Time
	PromotedAt       *time.Time
	UpdatedAt        time.Time
}

// NewConfirmed builds a registration that holds a place.
func NewConfirmed(memberID id.MemberID, eventID id.EventID, tierID id.TierID, now time.Time) *Registration {
	return &Registration{
		ID:           id.NewRegistrationID(),
		MemberID:     memberID,
		EventID:      eventID,
		TierID:       tierID,
		Status:       StatusConfirmed,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
}

// NewWaitlisted builds a registration queued at position.
func NewWaitlisted(memberID id.MemberID, eventID id.EventID, tierID id.TierID, position int, now time.Time) (*Registration, error) {
	if position < 1 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "waitlist position must be at least 1")
	}
	return &Registration{
		ID:               id.NewRegistrationID(),
		MemberID:         memberID,
		EventID:          eventID,
		TierID:           tierID,
		Status:           StatusWaitlisted,
		WaitlistPosition: &position,
		RegisteredAt:     now,
		UpdatedAt:        now,
	}, nil
}

// Position returns the waitlist position, or 0 when not waitlisted.
func (r *Registration) Position() int {
	if r.WaitlistPosition == nil {
		return 0
	}
	return *r.WaitlistPosition
}

// CanCancel checks that the registration is still active.
func (r *Registration) CanCancel() error {
	if !r.Status.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration is not active")
	}
	return nil
}

// ApplyCancel marks the registration cancelled and releases any position.
func (r *Registration) ApplyCancel(now time.Time) {
	r.Status = StatusCancelled
	r.WaitlistPosition = nil
	r.CancelledAt = &now
	r.UpdatedAt = now
}

// CanPromote checks that the registration is waiting for a place.
func (r *Registration) CanPromote() error {
	if r.Status != StatusWaitlisted {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration is not waitlisted")
	}
	return nil
}

// ApplyPromotion confirms a waitlisted registration and clears its position.
func (r *Registration) ApplyPromotion(now time.Time) {
	r.Status = StatusConfirmed
	r.WaitlistPosition = nil
	r.PromotedAt = &now
	r.UpdatedAt = now
}

// MoveUp shifts a waitlisted registration one place toward the head.
func (r *Registration) MoveUp(now time.Time) {
	if r.WaitlistPosition == nil || *r.WaitlistPosition <= 1 {
		return
	}
	next := *r.WaitlistPosition - 1
	r.WaitlistPosition = &next
	r.UpdatedAt = now
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	c := *r
	if r.WaitlistPosition != nil {
		p := *r.WaitlistPosition
		c.WaitlistPosition = &p
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		c.CancelledAt = &t
	}
	if r.PromotedAt != nil {
		t := *r.PromotedAt
		c.PromotedAt = &t
	}
	return &c
}
