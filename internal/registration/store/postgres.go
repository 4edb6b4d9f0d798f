package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"clubhouse/internal/eligibility"
	eventmodels "clubhouse/internal/event/models"
	membermodels "clubhouse/internal/member/models"
	"clubhouse/internal/registration/models"
	id "clubhouse/pkg/domain"
	"clubhouse/pkg/platform/sentinel"
	txcontext "clubhouse/pkg/platform/tx"
)

// PostgreSQL error codes the store classifies.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgExclusionViolation   = "23P01"
)

// PostgresStore persists the admission data in PostgreSQL. Atomic sections
// take a transaction-scoped advisory lock on the (event, tier) pair, so
// concurrent admissions to one tier queue up while other tiers proceed.
//
// Sections run READ COMMITTED: the lock is the first statement, and every
// later statement takes a fresh snapshot that includes the previous holder's
// commit. A SERIALIZABLE snapshot would be fixed before the lock is granted.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a store over db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, s.db)
}

// RunInTierTx runs fn inside one transaction holding the tier's advisory
// lock. The transaction is carried in txCtx so audit writes can join it.
func (s *PostgresStore) RunInTierTx(ctx context.Context, eventID id.EventID, tierID id.TierID, fn func(txCtx context.Context) error) (err error) {
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin admission tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockKey := eventID.String() + ":" + tierID.String()
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey); err != nil {
		return classify(fmt.Errorf("lock tier: %w", err))
	}

	if err = fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		// Deferred constraints are checked here.
		return classify(fmt.Errorf("commit admission tx: %w", err))
	}
	return nil
}

// classify maps PostgreSQL errors onto sentinel errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgSerializationFailure, pgDeadlockDetected, pgExclusionViolation:
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", sentinel.ErrAlreadyUsed, err)
	}
	return err
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}

// -----------------------------------------------------------------------------
// Catalog
// -----------------------------------------------------------------------------

const eventColumns = `id, title, status, publish_at, published_at, requires_registration,
	registration_opens_at, registration_deadline, start_time, end_time, sponsor_committees,
	created_at, updated_at`

// SaveEvent upserts an event.
func (s *PostgresStore) SaveEvent(ctx context.Context, e *eventmodels.Event) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::uuid[], $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			publish_at = EXCLUDED.publish_at,
			published_at = EXCLUDED.published_at,
			requires_registration = EXCLUDED.requires_registration,
			registration_opens_at = EXCLUDED.registration_opens_at,
			registration_deadline = EXCLUDED.registration_deadline,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			sponsor_committees = EXCLUDED.sponsor_committees,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(e.ID), e.Title, string(e.Status), e.PublishAt, e.PublishedAt, e.RequiresRegistration,
		e.RegistrationOpensAt, e.RegistrationDeadline, e.StartTime, e.EndTime,
		pq.Array(committeeStrings(e.SponsorCommittees)), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save event: %w", classify(err))
	}
	return nil
}

func (s *PostgresStore) FindEvent(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, uuid.UUID(eventID))
	var (
		e          eventmodels.Event
		rawID      uuid.UUID
		status     string
		committees []string
	)
	err := row.Scan(&rawID, &e.Title, &status, &e.PublishAt, &e.PublishedAt, &e.RequiresRegistration,
		&e.RegistrationOpensAt, &e.RegistrationDeadline, &e.StartTime, &e.EndTime, pq.Array(&committees),
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "event")
	}
	e.ID = id.EventID(rawID)
	if e.Status, err = eventmodels.ParseEventStatus(status); err != nil {
		return nil, err
	}
	if e.SponsorCommittees, err = parseCommittees(committees); err != nil {
		return nil, err
	}
	return &e, nil
}

// SaveTier upserts a ticket tier.
func (s *PostgresStore) SaveTier(ctx context.Context, t *eventmodels.TicketTier) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO ticket_tiers (id, event_id, code, name, category, quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			quantity = EXCLUDED.quantity,
			is_active = EXCLUDED.is_active`,
		uuid.UUID(t.ID), uuid.UUID(t.EventID), t.Code, t.Name, string(t.Category), t.Quantity, t.IsActive,
	)
	if err != nil {
		return fmt.Errorf("save tier: %w", classify(err))
	}
	return nil
}

const tierColumns = `id, event_id, code, name, category, quantity, is_active`

func scanTier(row interface{ Scan(...any) error }) (*eventmodels.TicketTier, error) {
	var (
		t                 eventmodels.TicketTier
		rawID, rawEventID uuid.UUID
		category          string
	)
	if err := row.Scan(&rawID, &rawEventID, &t.Code, &t.Name, &category, &t.Quantity, &t.IsActive); err != nil {
		return nil, err
	}
	t.ID = id.TierID(rawID)
	t.EventID = id.EventID(rawEventID)
	// Stored categories are kept verbatim; unknown ones are reported as not
	// applicable by the evaluator rather than failing the read.
	t.Category = eventmodels.TicketCategory(category)
	return &t, nil
}

func (s *PostgresStore) FindTier(ctx context.Context, eventID id.EventID, tierID id.TierID) (*eventmodels.TicketTier, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE id = $1 AND event_id = $2`,
		uuid.UUID(tierID), uuid.UUID(eventID))
	t, err := scanTier(row)
	if err != nil {
		return nil, notFound(err, "tier")
	}
	return t, nil
}

func (s *PostgresStore) ListTiers(ctx context.Context, eventID id.EventID) ([]*eventmodels.TicketTier, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+tierColumns+` FROM ticket_tiers WHERE event_id = $1 ORDER BY code`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()
	var out []*eventmodels.TicketTier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveMember upserts a member and replaces their status history.
func (s *PostgresStore) SaveMember(ctx context.Context, m *membermodels.Member) error {
	ex := s.exec(ctx)
	_, err := ex.ExecContext(ctx, `
		INSERT INTO members (id, display_name, email, committees)
		VALUES ($1, $2, $3, $4::uuid[])
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			committees = EXCLUDED.committees`,
		uuid.UUID(m.ID), m.DisplayName, m.Email, pq.Array(committeeStrings(m.Committees)),
	)
	if err != nil {
		return fmt.Errorf("save member: %w", err)
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM member_status_history WHERE member_id = $1`, uuid.UUID(m.ID)); err != nil {
		return fmt.Errorf("reset member history: %w", err)
	}
	for _, change := range m.StatusHistory {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO member_status_history (member_id, status, effective_at) VALUES ($1, $2, $3)`,
			uuid.UUID(m.ID), string(change.Status), change.EffectiveAt,
		); err != nil {
			return fmt.Errorf("save member history: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindMember(ctx context.Context, memberID id.MemberID) (*membermodels.Member, error) {
	ex := s.exec(ctx)
	var (
		m          membermodels.Member
		committees []string
	)
	err := ex.QueryRowContext(ctx,
		`SELECT display_name, email, committees FROM members WHERE id = $1`, uuid.UUID(memberID),
	).Scan(&m.DisplayName, &m.Email, pq.Array(&committees))
	if err != nil {
		return nil, notFound(err, "member")
	}
	m.ID = memberID
	if m.Committees, err = parseCommittees(committees); err != nil {
		return nil, err
	}

	rows, err := ex.QueryContext(ctx,
		`SELECT status, effective_at FROM member_status_history WHERE member_id = $1 ORDER BY effective_at`,
		uuid.UUID(memberID))
	if err != nil {
		return nil, fmt.Errorf("load member history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			at     time.Time
		)
		if err := rows.Scan(&status, &at); err != nil {
			return nil, fmt.Errorf("scan member history: %w", err)
		}
		parsed, err := membermodels.ParseMembershipStatus(status)
		if err != nil {
			return nil, err
		}
		m.StatusHistory = append(m.StatusHistory, membermodels.StatusChange{Status: parsed, EffectiveAt: at})
	}
	return &m, rows.Err()
}

// -----------------------------------------------------------------------------
// Overrides
// -----------------------------------------------------------------------------

const overrideColumns = `member_id, event_id, tier_id, outcome, reason, created_by, created_at`

func scanOverride(row interface{ Scan(...any) error }) (*eligibility.Override, error) {
	var (
		o                         eligibility.Override
		memberID, eventID, tierID uuid.UUID
		outcome                   string
	)
	if err := row.Scan(&memberID, &eventID, &tierID, &outcome, &o.Reason, &o.CreatedBy, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.MemberID = id.MemberID(memberID)
	o.EventID = id.EventID(eventID)
	o.TierID = id.TierID(tierID)
	o.Outcome = eligibility.OverrideOutcome(outcome)
	return &o, nil
}

func (s *PostgresStore) FindOverride(ctx context.Context, key eligibility.OverrideKey) (*eligibility.Override, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM eligibility_overrides WHERE member_id = $1 AND event_id = $2 AND tier_id = $3`,
		uuid.UUID(key.MemberID), uuid.UUID(key.EventID), uuid.UUID(key.TierID))
	o, err := scanOverride(row)
	if err != nil {
		return nil, notFound(err, "override")
	}
	return o, nil
}

func (s *PostgresStore) ListOverrides(ctx context.Context, memberID id.MemberID, eventID id.EventID) ([]*eligibility.Override, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM eligibility_overrides WHERE member_id = $1 AND event_id = $2`,
		uuid.UUID(memberID), uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()
	var out []*eligibility.Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertOverride(ctx context.Context, o *eligibility.Override) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO eligibility_overrides (`+overrideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (member_id, event_id, tier_id) DO UPDATE SET
			outcome = EXCLUDED.outcome,
			reason = EXCLUDED.reason,
			created_by = EXCLUDED.created_by,
			created_at = EXCLUDED.created_at`,
		uuid.UUID(o.MemberID), uuid.UUID(o.EventID), uuid.UUID(o.TierID), string(o.Outcome),
		o.Reason, o.CreatedBy, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert override: %w", classify(err))
	}
	return nil
}

func (s *PostgresStore) DeleteOverride(ctx context.Context, key eligibility.OverrideKey) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`DELETE FROM eligibility_overrides WHERE member_id = $1 AND event_id = $2 AND tier_id = $3`,
		uuid.UUID(key.MemberID), uuid.UUID(key.EventID), uuid.UUID(key.TierID))
	if err != nil {
		return fmt.Errorf("delete override: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("override: %w", sentinel.ErrNotFound)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Registrations
// -----------------------------------------------------------------------------

const registrationColumns = `id, member_id, event_id, tier_id, status, waitlist_position,
	registered_at, cancelled_at, promoted_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (*models.Registration, error) {
	var (
		r                                models.Registration
		regID, memberID, eventID, tierID uuid.UUID
		status                           string
		position                         sql.NullInt32
	)
	if err := row.Scan(&regID, &memberID, &eventID, &tierID, &status, &position,
		&r.RegisteredAt, &r.CancelledAt, &r.PromotedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = id.RegistrationID(regID)
	r.MemberID = id.MemberID(memberID)
	r.EventID = id.EventID(eventID)
	r.TierID = id.TierID(tierID)
	r.Status = models.Status(status)
	if position.Valid {
		p := int(position.Int32)
		r.WaitlistPosition = &p
	}
	return &r, nil
}

func (s *PostgresStore) queryRegistrations(ctx context.Context, where string, args ...any) ([]*models.Registration, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query registrations: %w", classify(err))
	}
	defer rows.Close()
	var out []*models.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", classify(err))
	}
	return out, nil
}

func (s *PostgresStore) FindRegistration(ctx context.Context, registrationID id.RegistrationID) (*models.Registration, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, uuid.UUID(registrationID))
	r, err := scanRegistration(row)
	if err != nil {
		return nil, notFound(err, "registration")
	}
	return r, nil
}

func (s *PostgresStore) FindActiveRegistration(ctx context.Context, memberID id.MemberID, eventID id.EventID) (*models.Registration, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		WHERE member_id = $1 AND event_id = $2 AND status IN ('CONFIRMED', 'WAITLISTED')`,
		uuid.UUID(memberID), uuid.UUID(eventID))
	r, err := scanRegistration(row)
	if err != nil {
		return nil, notFound(err, "active registration")
	}
	return r, nil
}

func (s *PostgresStore) ListRegistrations(ctx context.Context, eventID id.EventID) ([]*models.Registration, error) {
	return s.queryRegistrations(ctx, `event_id = $1 ORDER BY registered_at, COALESCE(waitlist_position, 0), id`, uuid.UUID(eventID))
}

func (s *PostgresStore) ListTierRegistrations(ctx context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error) {
	return s.queryRegistrations(ctx, `event_id = $1 AND tier_id = $2 ORDER BY registered_at, COALESCE(waitlist_position, 0), id`,
		uuid.UUID(eventID), uuid.UUID(tierID))
}

func (s *PostgresStore) ListWaitlist(ctx context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error) {
	return s.queryRegistrations(ctx,
		`event_id = $1 AND tier_id = $2 AND status = 'WAITLISTED' ORDER BY waitlist_position`,
		uuid.UUID(eventID), uuid.UUID(tierID))
}

// InsertRegistration adds a registration. The partial unique index on
// (member_id, event_id) surfaces as sentinel.ErrAlreadyUsed.
func (s *PostgresStore) InsertRegistration(ctx context.Context, r *models.Registration) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO registrations (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(r.ID), uuid.UUID(r.MemberID), uuid.UUID(r.EventID), uuid.UUID(r.TierID),
		string(r.Status), nullPosition(r), r.RegisteredAt, r.CancelledAt, r.PromotedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", classify(err))
	}
	return nil
}

func (s *PostgresStore) UpdateRegistration(ctx context.Context, r *models.Registration) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE registrations SET
			status = $2,
			waitlist_position = $3,
			cancelled_at = $4,
			promoted_at = $5,
			updated_at = $6
		WHERE id = $1`,
		uuid.UUID(r.ID), string(r.Status), nullPosition(r), r.CancelledAt, r.PromotedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update registration: %w", classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrNotFound)
	}
	return nil
}

func nullPosition(r *models.Registration) sql.NullInt32 {
	if r.WaitlistPosition == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*r.WaitlistPosition), Valid: true}
}

func committeeStrings(ids []id.CommitteeID) []string {
	out := make([]string, len(ids))
	for i, c := range ids {
		out[i] = c.String()
	}
	return out
}

func parseCommittees(raw []string) ([]id.CommitteeID, error) {
	out := make([]id.CommitteeID, 0, len(raw))
	for _, s := range raw {
		c, err := id.ParseCommitteeID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
