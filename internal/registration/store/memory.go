package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"clubhouse/internal/eligibility"
	eventmodels "clubhouse/internal/event/models"
	membermodels "clubhouse/internal/member/models"
	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	"clubhouse/pkg/platform/sentinel"
)

// InMemory is a process-local store for development and tests. Admission
// sections are serialised per (event, tier) with a keyed mutex; writes made
// inside a section are journaled and undone if the section fails, so a failed
// transition never leaves partial state.
type InMemory struct {
	mu            sync.RWMutex
	events        map[id.EventID]*eventmodels.Event
	tiers         map[id.TierID]*eventmodels.TicketTier
	members       map[id.MemberID]*membermodels.Member
	overrides     map[eligibility.OverrideKey]*eligibility.Override
	registrations map[id.RegistrationID]*models.Registration

	locks *tierLocks
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		events:        make(map[id.EventID]*eventmodels.Event),
		tiers:         make(map[id.TierID]*eventmodels.TicketTier),
		members:       make(map[id.MemberID]*membermodels.Member),
		overrides:     make(map[eligibility.OverrideKey]*eligibility.Override),
		registrations: make(map[id.RegistrationID]*models.Registration),
		locks:         newTierLocks(),
	}
}

// -----------------------------------------------------------------------------
// Atomic sections
// -----------------------------------------------------------------------------

type memTxKey struct{}

// memTx journals undo steps for writes made inside an atomic section.
type memTx struct {
	undo []func()
}

func memTxFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

// RunInTierTx runs fn while holding the lock for (eventID, tierID). If fn
// returns an error every write it made is rolled back. A section started
// inside another section joins it.
func (s *InMemory) RunInTierTx(ctx context.Context, eventID id.EventID, tierID id.TierID, fn func(txCtx context.Context) error) error {
	if memTxFrom(ctx) != nil {
		return fn(ctx)
	}

	unlock := s.locks.lock(tierKey{eventID: eventID, tierID: tierID})
	defer unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		s.rollback(tx)
		return err
	}
	return nil
}

func (s *InMemory) rollback(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
}

// journal records an undo step; called with s.mu held.
func journal(ctx context.Context, undo func()) {
	if tx := memTxFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

// -----------------------------------------------------------------------------
// Catalog (events, tiers, members)
// -----------------------------------------------------------------------------

// SaveEvent inserts or replaces an event.
func (s *InMemory) SaveEvent(_ context.Context, event *eventmodels.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = cloneEvent(event)
	return nil
}

// SaveTier inserts or replaces a ticket tier.
func (s *InMemory) SaveTier(_ context.Context, tier *eventmodels.TicketTier) error {
	if err := tier.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *tier
	s.tiers[tier.ID] = &t
	return nil
}

// SaveMember inserts or replaces a member.
func (s *InMemory) SaveMember(_ context.Context, member *membermodels.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[member.ID] = cloneMember(member)
	return nil
}

func (s *InMemory) FindEvent(_ context.Context, eventID id.EventID) (*eventmodels.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event %s: %w", eventID, sentinel.ErrNotFound)
	}
	return cloneEvent(e), nil
}

func (s *InMemory) FindTier(_ context.Context, eventID id.EventID, tierID id.TierID) (*eventmodels.TicketTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[tierID]
	if !ok || t.EventID != eventID {
		return nil, fmt.Errorf("tier %s: %w", tierID, sentinel.ErrNotFound)
	}
	c := *t
	return &c, nil
}

// ListTiers returns every tier of the event, active or not, ordered by code.
func (s *InMemory) ListTiers(_ context.Context, eventID id.EventID) ([]*eventmodels.TicketTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*eventmodels.TicketTier
	for _, t := range s.tiers {
		if t.EventID == eventID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemory) FindMember(_ context.Context, memberID id.MemberID) (*membermodels.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", memberID, sentinel.ErrNotFound)
	}
	return cloneMember(m), nil
}

// -----------------------------------------------------------------------------
// Overrides
// -----------------------------------------------------------------------------

func (s *InMemory) FindOverride(_ context.Context, key eligibility.OverrideKey) (*eligibility.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.overrides[key]
	if !ok {
		return nil, fmt.Errorf("override: %w", sentinel.ErrNotFound)
	}
	c := *o
	return &c, nil
}

// ListOverrides returns the member's overrides for every tier of an event.
func (s *InMemory) ListOverrides(_ context.Context, memberID id.MemberID, eventID id.EventID) ([]*eligibility.Override, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*eligibility.Override
	for key, o := range s.overrides {
		if key.MemberID == memberID && key.EventID == eventID {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

// UpsertOverride stores the override, replacing any existing one for its key.
func (s *InMemory) UpsertOverride(ctx context.Context, override *eligibility.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := override.OverrideKey
	prev, existed := s.overrides[key]
	journal(ctx, func() {
		if existed {
			s.overrides[key] = prev
		} else {
			delete(s.overrides, key)
		}
	})
	c := *override
	s.overrides[key] = &c
	return nil
}

// DeleteOverride removes the override for key.
func (s *InMemory) DeleteOverride(ctx context.Context, key eligibility.OverrideKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.overrides[key]
	if !ok {
		return fmt.Errorf("override: %w", sentinel.ErrNotFound)
	}
	journal(ctx, func() { s.overrides[key] = prev })
	delete(s.overrides, key)
	return nil
}

// -----------------------------------------------------------------------------
// Registrations
// -----------------------------------------------------------------------------

func (s *InMemory) FindRegistration(_ context.Context, registrationID id.RegistrationID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[registrationID]
	if !ok {
		return nil, fmt.Errorf("registration %s: %w", registrationID, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

// FindActiveRegistration returns the member's CONFIRMED or WAITLISTED
// registration for the event.
func (s *InMemory) FindActiveRegistration(_ context.Context, memberID id.MemberID, eventID id.EventID) (*models.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.activeFor(memberID, eventID); r != nil {
		return r.Clone(), nil
	}
	return nil, fmt.Errorf("active registration: %w", sentinel.ErrNotFound)
}

func (s *InMemory) activeFor(memberID id.MemberID, eventID id.EventID) *models.Registration {
	for _, r := range s.registrations {
		if r.MemberID == memberID && r.EventID == eventID && r.Status.IsActive() {
			return r
		}
	}
	return nil
}

// ListRegistrations returns every registration of an event.
func (s *InMemory) ListRegistrations(_ context.Context, eventID id.EventID) ([]*models.Registration, error) {
	return s.filter(func(r *models.Registration) bool { return r.EventID == eventID }), nil
}

// ListTierRegistrations returns every registration of one tier.
func (s *InMemory) ListTierRegistrations(_ context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error) {
	return s.filter(func(r *models.Registration) bool {
		return r.EventID == eventID && r.TierID == tierID
	}), nil
}

// ListWaitlist returns the tier's WAITLISTED registrations by position.
func (s *InMemory) ListWaitlist(_ context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error) {
	out := s.filter(func(r *models.Registration) bool {
		return r.EventID == eventID && r.TierID == tierID && r.Status == models.StatusWaitlisted
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Position() < out[j].Position() })
	return out, nil
}

func (s *InMemory) filter(keep func(*models.Registration) bool) []*models.Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Registration
	for _, r := range s.registrations {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return registeredBefore(out[i], out[j]) })
	return out
}

// registeredBefore orders by registration time. Equal stamps fall back to the
// waitlist position, then the id, so listings agree with the queue.
func registeredBefore(a, b *models.Registration) bool {
	if !a.RegisteredAt.Equal(b.RegisteredAt) {
		return a.RegisteredAt.Before(b.RegisteredAt)
	}
	if a.Position() != b.Position() {
		return a.Position() < b.Position()
	}
	return a.ID.String() < b.ID.String()
}

// InsertRegistration adds a new registration. It returns
// sentinel.ErrAlreadyUsed when the member already holds an active
// registration for the event, and sentinel.ErrConflict when the waitlist
// position is taken.
func (s *InMemory) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registrations[reg.ID]; exists {
		return fmt.Errorf("registration %s: %w", reg.ID, sentinel.ErrAlreadyUsed)
	}
	if reg.Status.IsActive() && s.activeFor(reg.MemberID, reg.EventID) != nil {
		return fmt.Errorf("active registration for member %s: %w", reg.MemberID, sentinel.ErrAlreadyUsed)
	}
	if err := s.checkPosition(reg); err != nil {
		return err
	}
	journal(ctx, func() { delete(s.registrations, reg.ID) })
	s.registrations[reg.ID] = reg.Clone()
	return nil
}

// UpdateRegistration replaces an existing registration.
func (s *InMemory) UpdateRegistration(ctx context.Context, reg *models.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.registrations[reg.ID]
	if !ok {
		return fmt.Errorf("registration %s: %w", reg.ID, sentinel.ErrNotFound)
	}
	if reg.Status.IsActive() && !prev.Status.IsActive() {
		if other := s.activeFor(reg.MemberID, reg.EventID); other != nil && other.ID != reg.ID {
			return fmt.Errorf("active registration for member %s: %w", reg.MemberID, sentinel.ErrAlreadyUsed)
		}
	}
	if err := s.checkPosition(reg); err != nil {
		return err
	}
	journal(ctx, func() { s.registrations[reg.ID] = prev })
	s.registrations[reg.ID] = reg.Clone()
	return nil
}

// checkPosition rejects a waitlist position already held in the tier.
// Compaction rewrites positions head first, so it never trips this check.
func (s *InMemory) checkPosition(reg *models.Registration) error {
	if reg.Status != models.StatusWaitlisted {
		return nil
	}
	for _, r := range s.registrations {
		if r.ID != reg.ID && r.EventID == reg.EventID && r.TierID == reg.TierID &&
			r.Status == models.StatusWaitlisted && r.Position() == reg.Position() {
			return fmt.Errorf("waitlist position %d: %w", reg.Position(), sentinel.ErrConflict)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

type tierKey struct {
	eventID id.EventID
	tierID  id.TierID
}

// tierLocks hands out one mutex per (event, tier), dropping entries nobody
// holds or waits for.
type tierLocks struct {
	mu    sync.Mutex
	locks map[tierKey]*tierLock
}

type tierLock struct {
	mu   sync.Mutex
	refs int
}

func newTierLocks() *tierLocks {
	return &tierLocks{locks: make(map[tierKey]*tierLock)}
}

func (l *tierLocks) lock(key tierKey) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &tierLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func cloneEvent(e *eventmodels.Event) *eventmodels.Event {
	c := *e
	c.PublishAt = copyTime(e.PublishAt)
	c.PublishedAt = copyTime(e.PublishedAt)
	c.RegistrationOpensAt = copyTime(e.RegistrationOpensAt)
	c.RegistrationDeadline = copyTime(e.RegistrationDeadline)
	c.EndTime = copyTime(e.EndTime)
	c.SponsorCommittees = slices.Clone(e.SponsorCommittees)
	return &c
}

func cloneMember(m *membermodels.Member) *membermodels.Member {
	c := *m
	c.StatusHistory = slices.Clone(m.StatusHistory)
	c.Committees = slices.Clone(m.Committees)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
