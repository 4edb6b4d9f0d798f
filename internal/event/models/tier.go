package models

import (
	"strings"

	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// TicketCategory selects the default eligibility rule for a tier. The set is
// closed: the eligibility evaluator switches over every value, and anything
// else is reported as not applicable rather than allowed.
type TicketCategory string

const (
	CategoryMemberStandard   TicketCategory = "MEMBER_STANDARD"
	CategorySponsorCommittee TicketCategory = "SPONSOR_COMMITTEE"
	CategoryWorkingCommittee TicketCategory = "WORKING_COMMITTEE"
)

// Known reports whether c is one of the defined categories.
func (c TicketCategory) Known() bool {
	switch c {
	case CategoryMemberStandard, CategorySponsorCommittee, CategoryWorkingCommittee:
		return true
	}
	return false
}

// ParseTicketCategory normalizes and validates a category string.
func ParseTicketCategory(s string) (TicketCategory, error) {
	c := TicketCategory(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !c.Known() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid ticket category: "+s)
	}
	return c, nil
}

// TicketTier is a named, finite-quantity allotment within an event.
type TicketTier struct {
	ID       id.TierID
	EventID  id.EventID
	Code     string
	Name     string
	Category TicketCategory
	Quantity int
	IsActive bool
}

// Validate checks the tier's structural invariants.
func (t *TicketTier) Validate() error {
	if t.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier id is required")
	}
	if t.EventID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier event id is required")
	}
	if t.Quantity < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "tier quantity must not be negative")
	}
	return nil
}
