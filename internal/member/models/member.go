package models

import (
	"slices"
	"sort"
	"strings"
	"time"

	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
)

// MembershipStatus is a member's standing with the club.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipHonorary  MembershipStatus = "HONORARY"
	MembershipPending   MembershipStatus = "PENDING"
	MembershipLapsed    MembershipStatus = "LAPSED"
	MembershipSuspended MembershipStatus = "SUSPENDED"
	MembershipResigned  MembershipStatus = "RESIGNED"
)

// IsActive reports whether the status confers member privileges.
func (s MembershipStatus) IsActive() bool {
	return s == MembershipActive || s == MembershipHonorary
}

// ParseMembershipStatus validates a status string.
func ParseMembershipStatus(s string) (MembershipStatus, error) {
	status := MembershipStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case MembershipActive, MembershipHonorary, MembershipPending,
		MembershipLapsed, MembershipSuspended, MembershipResigned:
		return status, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid membership status: "+s)
}

// StatusChange records a status taking effect at a point in time.
type StatusChange struct {
	Status      MembershipStatus
	EffectiveAt time.Time
}

// Member is the membership record the eligibility rules consult.
type Member struct {
	ID          id.MemberID
	DisplayName string
	Email       string
	// StatusHistory holds every status change; order is not significant.
	StatusHistory []StatusChange
	// Committees holds current committee affiliations.
	Committees []id.CommitteeID
}

// StatusOn returns the membership status in effect at t. The second result is
// false when no status had taken effect yet (the person was not a member).
func (m *Member) StatusOn(t time.Time) (MembershipStatus, bool) {
	history := slices.Clone(m.StatusHistory)
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].EffectiveAt.Before(history[j].EffectiveAt)
	})
	var (
		current MembershipStatus
		found   bool
	)
	for _, change := range history {
		if change.EffectiveAt.After(t) {
			break
		}
		current = change.Status
		found = true
	}
	return current, found
}

// BelongsTo reports whether the member currently sits on committeeID.
func (m *Member) BelongsTo(committeeID id.CommitteeID) bool {
	return slices.Contains(m.Committees, committeeID)
}
