package models

import (
	"clubhouse/internal/eligibility"
	id "clubhouse/pkg/domain"
)

// RegisterResult is returned to a member after registering.
type RegisterResult struct {
	Registration *Registration
	Status       Status
	// WaitlistPosition is set only for WAITLISTED results.
	WaitlistPosition *int
}

// PromoteResult is returned to an administrator after a manual promotion.
type PromoteResult struct {
	Registration      *Registration
	Status            Status
	RemainingWaitlist int
	SpotsAvailable    int
	// Warning is set when a promotion pushed the tier over its quantity.
	Warning string
}

// TicketTypeEligibility is one active tier with the caller's verdict.
type TicketTypeEligibility struct {
	TierID      id.TierID
	Code        string
	Name        string
	Eligibility eligibility.Result
}

// EligibilityView lists every active tier of an event for one member.
type EligibilityView struct {
	EventID     id.EventID
	MemberID    id.MemberID
	TicketTypes []TicketTypeEligibility
}

// PromotionTrigger records why a waitlisted registration was confirmed.
type PromotionTrigger string

const (
	PromotionOnCancel PromotionTrigger = "cancellation"
	PromotionManual   PromotionTrigger = "manual"
)
