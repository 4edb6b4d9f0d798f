package audit

import (
	"context"
	"time"
)

// Action names a committed state transition.
type Action string

const (
	// Registration lifecycle
	ActionRegistrationConfirmed  Action = "registration_confirmed"
	ActionRegistrationWaitlisted Action = "registration_waitlisted"
	ActionRegistrationCancelled  Action = "registration_cancelled"
	ActionRegistrationPromoted   Action = "registration_promoted"

	// Eligibility overrides
	ActionOverrideSet     Action = "eligibility_override_set"
	ActionOverrideCleared Action = "eligibility_override_cleared"
)

// Resource types recorded on audit events.
const (
	ResourceRegistration = "registration"
	ResourceOverride     = "eligibility_override"
)

// Event is one structured record per committed transition. Before and After
// hold JSON-serialisable snapshots of the resource; either may be nil for
// creations and deletions.
type Event struct {
	Action       Action
	ResourceType string
	ResourceID   string
	ActorID      string
	Before       any
	After        any
	// Metadata carries request correlation (request_id, client_ip, browser,
	// os) and operation details such as the promotion trigger.
	Metadata  map[string]string
	Timestamp time.Time
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]Event, error)
}
