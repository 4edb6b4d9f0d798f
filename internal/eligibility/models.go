package eligibility

import (
	"strings"
	"time"

	eventmodels "clubhouse/internal/event/models"
	membermodels "clubhouse/internal/member/models"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// ReasonCode explains an eligibility outcome. Values are stable and returned
// to clients verbatim.
type ReasonCode string

const (
	ReasonOverrideAllowed           ReasonCode = "OVERRIDE_ALLOWED"
	ReasonOverrideDenied            ReasonCode = "OVERRIDE_DENIED"
	ReasonMemberOnEventDate         ReasonCode = "MEMBER_ON_EVENT_DATE"
	ReasonNotMemberOnEventDate      ReasonCode = "NOT_MEMBER_ON_EVENT_DATE"
	ReasonSponsorCommitteeMember    ReasonCode = "SPONSOR_COMMITTEE_MEMBER"
	ReasonNotSponsorCommitteeMember ReasonCode = "NOT_SPONSOR_COMMITTEE_MEMBER"
	ReasonCommitteeMember           ReasonCode = "COMMITTEE_MEMBER"
	ReasonNotCommitteeMember        ReasonCode = "NOT_COMMITTEE_MEMBER"
	ReasonNotApplicable             ReasonCode = "NOT_APPLICABLE"
	ReasonNotAMember                ReasonCode = "NOT_A_MEMBER"
)

// OverrideOutcome is the decision an administrator recorded for one member,
// event and tier.
type OverrideOutcome string

const (
	OverrideAllow OverrideOutcome = "ALLOW"
	OverrideDeny  OverrideOutcome = "DENY"
)

// ParseOverrideOutcome validates an outcome string.
func ParseOverrideOutcome(s string) (OverrideOutcome, error) {
	o := OverrideOutcome(strings.ToUpper(strings.TrimSpace(s)))
	switch o {
	case OverrideAllow, OverrideDeny:
		return o, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "override outcome must be ALLOW or DENY")
}

// OverrideKey identifies an override; there is at most one per key.
type OverrideKey struct {
	MemberID id.MemberID
	EventID  id.EventID
	TierID   id.TierID
}

// Override is an explicit per-member, per-tier exception that supersedes the
// default rule for the tier's category.
type Override struct {
	OverrideKey
	Outcome   OverrideOutcome
	Reason    string
	CreatedBy string
	CreatedAt time.Time
}

// MemberSnapshot is what the rules need to know about a member, resolved as
// of the event's date.
type MemberSnapshot struct {
	// Exists is false when no member record was found.
	Exists bool
	// Status is the membership status in effect on the event date; empty when
	// the person was not yet a member.
	Status     membermodels.MembershipStatus
	Committees []id.CommitteeID
}

// SnapshotFor resolves a member against the event's date. A nil member yields
// a snapshot with Exists=false.
func SnapshotFor(member *membermodels.Member, event *eventmodels.Event) MemberSnapshot {
	if member == nil {
		return MemberSnapshot{}
	}
	status, _ := member.StatusOn(eventDate(event))
	return MemberSnapshot{
		Exists:     true,
		Status:     status,
		Committees: member.Committees,
	}
}

// eventDate is the instant membership is judged at: the event start, or the
// registration deadline for events without a start time yet.
func eventDate(event *eventmodels.Event) time.Time {
	if !event.StartTime.IsZero() {
		return event.StartTime
	}
	if event.RegistrationDeadline != nil {
		return *event.RegistrationDeadline
	}
	return time.Time{}
}

// Tier is the part of a ticket tier and its event that selects a rule.
type Tier struct {
	Category          eventmodels.TicketCategory
	SponsorCommittees []id.CommitteeID
}

// TierFor builds the rule input for a tier of event.
func TierFor(tier *eventmodels.TicketTier, event *eventmodels.Event) Tier {
	return Tier{Category: tier.Category, SponsorCommittees: event.SponsorCommittees}
}

// Result is the evaluator's verdict.
type Result struct {
	Allowed bool
	Reason  ReasonCode
	Detail  string
}
