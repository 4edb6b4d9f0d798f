package handler

import (
	"time"

	"clubhouse/internal/eligibility"
	"clubhouse/internal/event/status"
	"clubhouse/internal/registration/models"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
)

// RegistrationResponse describes one registration.
type RegistrationResponse struct {
	RegistrationID   string     `json:"registration_id"`
	EventID          string     `json:"event_id"`
	TicketTierID     string     `json:"ticket_tier_id"`
	MemberID         string     `json:"member_id"`
	Status           string     `json:"status"`
	WaitlistPosition *int       `json:"waitlist_position,omitempty"`
	RegisteredAt     time.Time  `json:"registered_at"`
	PromotedAt       *time.Time `json:"promoted_at,omitempty"`
}

// PromoteResponse is returned by the administrator promote endpoint.
type PromoteResponse struct {
	Status            string               `json:"status"`
	Registration      RegistrationResponse `json:"registration"`
	RemainingWaitlist int                  `json:"remaining_waitlist"`
	SpotsAvailable    int                  `json:"spots_available"`
	Warning           string               `json:"warning,omitempty"`
}

// EligibilityResponse lists the member's verdict for every active tier.
type EligibilityResponse struct {
	EventID     string                     `json:"event_id"`
	TicketTypes []TicketTypeEligibilityDTO `json:"ticket_types"`
}

type TicketTypeEligibilityDTO struct {
	TicketTierID string         `json:"ticket_tier_id"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	Eligibility  EligibilityDTO `json:"eligibility"`
}

// EligibilityDTO is one evaluator verdict.
type EligibilityDTO struct {
	Allowed      bool   `json:"allowed"`
	ReasonCode   string `json:"reason_code"`
	ReasonDetail string `json:"reason_detail,omitempty"`
}

// AvailabilityResponse carries the tier metrics of an event.
type AvailabilityResponse struct {
	Tiers           []TierAvailabilityDTO `json:"tiers"`
	TotalAvailable  int                   `json:"total_available"`
	TotalSold       int                   `json:"total_sold"`
	TotalRemaining  int                   `json:"total_remaining"`
	TotalWaitlisted int                   `json:"total_waitlisted"`
	CapacityStatus  string                `json:"capacity_status"`
}

type TierAvailabilityDTO struct {
	TicketTierID string `json:"ticket_tier_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	Sold         int    `json:"sold"`
	Remaining    int    `json:"remaining"`
	Waitlisted   int    `json:"waitlisted"`
	IsFull       bool   `json:"is_full"`
	HasWaitlist  bool   `json:"has_waitlist"`
}

// EventStatusResponse carries the derived lifecycle states.
type EventStatusResponse struct {
	EventID      string    `json:"event_id"`
	Operational  string    `json:"operational_status"`
	Visibility   string    `json:"visibility"`
	Registration string    `json:"registration"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// ScheduleResponse carries default authoring times.
type ScheduleResponse struct {
	PublishAt           time.Time  `json:"publish_at"`
	RegistrationOpensAt *time.Time `json:"registration_opens_at,omitempty"`
}

// WaitlistResponse lists a tier's waitlist in position order.
type WaitlistResponse struct {
	EventID      string                 `json:"event_id"`
	TicketTierID string                 `json:"ticket_tier_id"`
	Entries      []RegistrationResponse `json:"entries"`
}

// OverrideResponse describes a stored eligibility override.
type OverrideResponse struct {
	EventID      string    `json:"event_id"`
	TicketTierID string    `json:"ticket_tier_id"`
	MemberID     string    `json:"member_id"`
	Outcome      string    `json:"outcome"`
	Reason       string    `json:"reason"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromRegistration converts a registration to its HTTP representation.
func FromRegistration(reg *models.Registration) RegistrationResponse {
	return RegistrationResponse{
		RegistrationID:   reg.ID.String(),
		EventID:          reg.EventID.String(),
		TicketTierID:     reg.TierID.String(),
		MemberID:         reg.MemberID.String(),
		Status:           string(reg.Status),
		WaitlistPosition: reg.WaitlistPosition,
		RegisteredAt:     reg.RegisteredAt,
		PromotedAt:       reg.PromotedAt,
	}
}

func FromRegisterResult(result *models.RegisterResult) RegistrationResponse {
	return FromRegistration(result.Registration)
}

func FromPromoteResult(result *models.PromoteResult) *PromoteResponse {
	return &PromoteResponse{
		Status:            string(result.Status),
		Registration:      FromRegistration(result.Registration),
		RemainingWaitlist: result.RemainingWaitlist,
		SpotsAvailable:    result.SpotsAvailable,
		Warning:           result.Warning,
	}
}

func FromEligibilityView(view *models.EligibilityView) *EligibilityResponse {
	resp := &EligibilityResponse{
		EventID:     view.EventID.String(),
		TicketTypes: make([]TicketTypeEligibilityDTO, 0, len(view.TicketTypes)),
	}
	for _, tt := range view.TicketTypes {
		resp.TicketTypes = append(resp.TicketTypes, TicketTypeEligibilityDTO{
			TicketTierID: tt.TierID.String(),
			Code:         tt.Code,
			Name:         tt.Name,
			Eligibility: EligibilityDTO{
				Allowed:      tt.Eligibility.Allowed,
				ReasonCode:   string(tt.Eligibility.Reason),
				ReasonDetail: tt.Eligibility.Detail,
			},
		})
	}
	return resp
}

func FromSummary(summary *tiermetrics.Summary) *AvailabilityResponse {
	resp := &AvailabilityResponse{
		Tiers:           make([]TierAvailabilityDTO, 0, len(summary.Tiers)),
		TotalAvailable:  summary.TotalAvailable,
		TotalSold:       summary.TotalSold,
		TotalRemaining:  summary.TotalRemaining,
		TotalWaitlisted: summary.TotalWaitlisted,
		CapacityStatus:  string(summary.CapacityStatus),
	}
	for _, t := range summary.Tiers {
		resp.Tiers = append(resp.Tiers, TierAvailabilityDTO{
			TicketTierID: t.TierID.String(),
			Code:         t.Code,
			Name:         t.Name,
			Quantity:     t.Quantity,
			Sold:         t.Sold,
			Remaining:    t.Remaining,
			Waitlisted:   t.Waitlisted,
			IsFull:       t.IsFull,
			HasWaitlist:  t.HasWaitlist,
		})
	}
	return resp
}

func FromSnapshot(eventID id.EventID, snap status.Snapshot, at time.Time) *EventStatusResponse {
	return &EventStatusResponse{
		EventID:      eventID.String(),
		Operational:  string(snap.Operational),
		Visibility:   string(snap.Visibility),
		Registration: string(snap.Registration),
		EvaluatedAt:  at,
	}
}

func FromSchedule(s status.Schedule) *ScheduleResponse {
	return &ScheduleResponse{PublishAt: s.PublishAt, RegistrationOpensAt: s.RegistrationOpensAt}
}

func FromWaitlist(eventID id.EventID, tierID id.TierID, regs []*models.Registration) *WaitlistResponse {
	resp := &WaitlistResponse{
		EventID:      eventID.String(),
		TicketTierID: tierID.String(),
		Entries:      make([]RegistrationResponse, 0, len(regs)),
	}
	for _, reg := range regs {
		resp.Entries = append(resp.Entries, FromRegistration(reg))
	}
	return resp
}

func FromOverride(o *eligibility.Override) *OverrideResponse {
	return &OverrideResponse{
		EventID:      o.EventID.String(),
		TicketTierID: o.TierID.String(),
		MemberID:     o.MemberID.String(),
		Outcome:      string(o.Outcome),
		Reason:       o.Reason,
		CreatedBy:    o.CreatedBy,
		CreatedAt:    o.CreatedAt,
	}
}
