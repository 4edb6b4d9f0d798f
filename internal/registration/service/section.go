package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/platform/sentinel"
)

// Reason codes returned with admission errors.
const (
	ReasonAlreadyRegistered   = "ALREADY_REGISTERED"
	ReasonRegistrationNotOpen = "REGISTRATION_NOT_OPEN"
	ReasonCapacityRace        = "CAPACITY_RACE"
	ReasonNotWaitlisted       = "NOT_WAITLISTED"
	ReasonCapacityExceeded    = "CAPACITY_EXCEEDED"
	ReasonTierInactive        = "TIER_INACTIVE"
)

// sectionFunc performs one transition and returns the audit records it
// produces. It may run twice when the first attempt hits a write conflict.
type sectionFunc func(txCtx context.Context) ([]audit.Event, error)

// runSection executes fn as the atomic section for (eventID, tierID).
//
// A section that has started is detached from the caller's cancellation and
// runs to commit or rollback under its own timeout. A write conflict is
// retried once against a fresh snapshot before surfacing as a conflict.
// The returned context is the detached one, for post-commit side effects.
func (s *Service) runSection(ctx context.Context, op string, eventID id.EventID, tierID id.TierID, fn sectionFunc) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return ctx, dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled before admission")
	}
	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sectionTimeout)
	defer cancel()

	var events []audit.Event
	attempt := func() error {
		return s.tx.RunInTierTx(detached, eventID, tierID, func(txCtx context.Context) error {
			evs, err := fn(txCtx)
			if err != nil {
				return err
			}
			if s.audit.failClosed {
				for _, ev := range evs {
					if err := s.audit.emit(txCtx, ev); err != nil {
						return err
					}
				}
			}
			events = evs
			return nil
		})
	}

	err := s.timedSection(detached, op, eventID, tierID, attempt)
	if errors.Is(err, sentinel.ErrConflict) {
		s.metrics.IncConflictRetry()
		s.logger.WarnContext(ctx, "admission write conflict, retrying",
			"operation", op,
			"event_id", eventID.String(),
			"tier_id", tierID.String(),
			"error", err,
		)
		err = s.timedSection(detached, op, eventID, tierID, attempt)
	}
	if err != nil {
		return ctx, translateSectionErr(err)
	}

	// Post-commit work must outlive the section's timeout.
	after := context.WithoutCancel(ctx)
	if !s.audit.failClosed {
		for _, ev := range events {
			_ = s.audit.emit(after, ev)
		}
	}
	return after, nil
}

func (s *Service) timedSection(ctx context.Context, op string, eventID id.EventID, tierID id.TierID, attempt func() error) error {
	_, span := s.tracer.Start(ctx, "registration.critical_section",
		trace.WithAttributes(
			attribute.String("operation", op),
			attribute.String("event_id", eventID.String()),
			attribute.String("tier_id", tierID.String()),
		),
	)
	start := time.Now()
	err := attempt()
	s.metrics.ObserveCriticalSection(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "section failed")
	}
	span.End()
	return err
}

// translateSectionErr maps store facts onto the admission error taxonomy.
// Coded errors raised inside the section pass through unchanged.
func translateSectionErr(err error) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonAlreadyRegistered,
			"member already holds an active registration for this event")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.NewWithReason(dErrors.CodeConflict, ReasonCapacityRace,
			"registration changed concurrently; please retry")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "resource not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "admission timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "admission failed")
}

// loadErr maps a read failure for what onto NotFound or Internal.
func loadErr(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+what)
}

// startOp opens the span for a public operation; end records the outcome.
func (s *Service) startOp(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := s.tracer.Start(ctx, "registration."+name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
			s.metrics.IncRejection(string(dErrors.CodeOf(err)))
		}
		span.End()
	}
}
