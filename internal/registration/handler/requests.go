package handler

import (
	"strings"

	"clubhouse/internal/eligibility"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// RegisterRequest is the body of POST /events/{eventID}/registrations.
type RegisterRequest struct {
	TicketTierID string `json:"ticket_tier_id"`

	tierID id.TierID
}

// Validate implements httputil.Validatable.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	tierID, err := id.ParseTierID(r.TicketTierID)
	if err != nil {
		return err
	}
	r.tierID = tierID
	return nil
}

// PromoteRequest is the body of POST /admin/registrations/{id}/promote. An
// empty body promotes without exceeding capacity.
type PromoteRequest struct {
	OverrideCapacity bool `json:"override_capacity"`
}

func (r *PromoteRequest) Validate() error { return nil }

// SetOverrideRequest is the body of PUT .../overrides/{memberID}.
type SetOverrideRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`

	outcome eligibility.OverrideOutcome
}

// Validate implements httputil.Validatable.
func (r *SetOverrideRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 500 characters")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	outcome, err := eligibility.ParseOverrideOutcome(strings.ToUpper(strings.TrimSpace(r.Outcome)))
	if err != nil {
		return err
	}
	r.outcome = outcome
	return nil
}
