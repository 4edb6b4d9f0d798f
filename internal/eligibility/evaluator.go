package eligibility

import (
	"slices"
	"strings"

	eventmodels "clubhouse/internal/event/models"
	id "clubhouse/pkg/domain"
)

// Evaluate decides whether a member may hold a ticket in a tier.
// This is pure domain logic - no I/O, no side effects.
//
// Rule priority (fail-fast):
//  1. Missing member record - fail closed
//  2. Explicit override - wins outright
//  3. Default rule for the tier category
//
// Unknown categories are reported as not applicable and denied; nothing falls
// through to an allow.
func Evaluate(member MemberSnapshot, tier Tier, override *Override) Result {
	// Rule 1: no record means no identity to apply rules to
	if !member.Exists {
		return deny(ReasonNotAMember, "no member record")
	}

	// Rule 2: explicit override
	if override != nil {
		switch override.Outcome {
		case OverrideAllow:
			return Result{Allowed: true, Reason: ReasonOverrideAllowed, Detail: override.Reason}
		case OverrideDeny:
			return Result{Allowed: false, Reason: ReasonOverrideDenied, Detail: override.Reason}
		}
		// A malformed outcome is ignored rather than trusted.
	}

	// Rule 3: category default
	switch tier.Category {
	case eventmodels.CategoryMemberStandard:
		return evaluateMemberStandard(member)
	case eventmodels.CategorySponsorCommittee:
		return evaluateSponsorCommittee(member, tier.SponsorCommittees)
	case eventmodels.CategoryWorkingCommittee:
		return evaluateWorkingCommittee(member)
	default:
		return deny(ReasonNotApplicable, "unknown ticket category "+string(tier.Category))
	}
}

// evaluateMemberStandard allows members whose status was active on the event date.
func evaluateMemberStandard(member MemberSnapshot) Result {
	if member.Status.IsActive() {
		return allow(ReasonMemberOnEventDate)
	}
	if member.Status == "" {
		return deny(ReasonNotMemberOnEventDate, "membership had not started by the event date")
	}
	return deny(ReasonNotMemberOnEventDate, "membership status on event date was "+string(member.Status))
}

// evaluateSponsorCommittee allows members of any sponsoring or co-sponsoring committee.
func evaluateSponsorCommittee(member MemberSnapshot, sponsors []id.CommitteeID) Result {
	if len(sponsors) == 0 {
		return deny(ReasonNotSponsorCommitteeMember, "event has no sponsoring committee")
	}
	for _, committee := range member.Committees {
		if slices.Contains(sponsors, committee) {
			return allow(ReasonSponsorCommitteeMember)
		}
	}
	names := make([]string, 0, len(sponsors))
	for _, committee := range sponsors {
		names = append(names, committee.String())
	}
	return deny(ReasonNotSponsorCommitteeMember, "requires membership in committee "+strings.Join(names, ", "))
}

// evaluateWorkingCommittee allows members who sit on any committee.
func evaluateWorkingCommittee(member MemberSnapshot) Result {
	if len(member.Committees) > 0 {
		return allow(ReasonCommitteeMember)
	}
	return deny(ReasonNotCommitteeMember, "requires membership in any committee")
}

func allow(reason ReasonCode) Result {
	return Result{Allowed: true, Reason: reason}
}

func deny(reason ReasonCode, detail string) Result {
	return Result{Allowed: false, Reason: reason, Detail: detail}
}
