// Package domain holds typed identifiers shared across bounded contexts.
// Distinct named types keep a MemberID from being passed where an EventID is
// expected; parsing happens once at trust boundaries.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "clubhouse/pkg/domain-errors"
)

type (
	MemberID       uuid.UUID
	EventID        uuid.UUID
	TierID         uuid.UUID
	RegistrationID uuid.UUID
	CommitteeID    uuid.UUID
)

func (id MemberID) String() string       { return uuid.UUID(id).String() }
func (id EventID) String() string        { return uuid.UUID(id).String() }
func (id TierID) String() string         { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id CommitteeID) String() string    { return uuid.UUID(id).String() }

func (id MemberID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TierID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CommitteeID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// MarshalText encodes IDs in their canonical string form, so they appear as
// strings in JSON payloads and cache entries.
func (id MemberID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id TierID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id CommitteeID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *MemberID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TierID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RegistrationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CommitteeID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewRegistrationID generates a random registration identifier.
func NewRegistrationID() RegistrationID {
	return RegistrationID(uuid.New())
}

func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID(s, "member_id")
	return MemberID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event_id")
	return EventID(u), err
}

func ParseTierID(s string) (TierID, error) {
	u, err := parseUUID(s, "ticket_tier_id")
	return TierID(u), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration_id")
	return RegistrationID(u), err
}

func ParseCommitteeID(s string) (CommitteeID, error) {
	u, err := parseUUID(s, "committee_id")
	return CommitteeID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, field string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}
