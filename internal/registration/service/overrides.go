package service

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clubhouse/internal/eligibility"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/platform/sentinel"
	"clubhouse/pkg/requestcontext"
)

// SetOverride records an administrator's ALLOW or DENY for one member and
// tier, replacing any earlier decision for the same key.
func (s *Service) SetOverride(ctx context.Context, key eligibility.OverrideKey, outcome eligibility.OverrideOutcome, reason string) (_ *eligibility.Override, err error) {
	ctx, end := s.startOp(ctx, "SetOverride",
		attribute.String("event_id", key.EventID.String()),
		attribute.String("member_id", key.MemberID.String()),
		attribute.String("tier_id", key.TierID.String()))
	defer end(&err)

	if key.MemberID.IsNil() || key.EventID.IsNil() || key.TierID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "member, event and ticket tier are required")
	}
	if outcome != eligibility.OverrideAllow && outcome != eligibility.OverrideDeny {
		return nil, dErrors.New(dErrors.CodeValidation, "override outcome must be ALLOW or DENY")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "override reason is required")
	}
	if _, err := s.store.FindTier(ctx, key.EventID, key.TierID); err != nil {
		return nil, loadErr(err, "ticket tier")
	}
	if _, err := s.store.FindMember(ctx, key.MemberID); err != nil {
		return nil, loadErr(err, "member")
	}

	override := &eligibility.Override{
		OverrideKey: key,
		Outcome:     outcome,
		Reason:      reason,
		CreatedBy:   requestcontext.ActorID(ctx),
		CreatedAt:   requestcontext.Now(ctx),
	}
	// Overrides share the tier's section so a register in flight sees either
	// the old or the new decision, never a torn one.
	_, err = s.runSection(ctx, "set_override", key.EventID, key.TierID, func(txCtx context.Context) ([]audit.Event, error) {
		before, err := s.store.FindOverride(txCtx, key)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, err
		}
		if err := s.store.UpsertOverride(txCtx, override); err != nil {
			return nil, err
		}
		return []audit.Event{overrideEvent(audit.ActionOverrideSet, key, before, override)}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "eligibility override set",
		"request_id", requestcontext.RequestID(ctx),
		"event_id", key.EventID.String(),
		"member_id", key.MemberID.String(),
		"tier_id", key.TierID.String(),
		"outcome", outcome,
	)
	return override, nil
}

// ClearOverride removes the override for key so the default rule applies.
func (s *Service) ClearOverride(ctx context.Context, key eligibility.OverrideKey) (err error) {
	ctx, end := s.startOp(ctx, "ClearOverride",
		attribute.String("event_id", key.EventID.String()),
		attribute.String("member_id", key.MemberID.String()),
		attribute.String("tier_id", key.TierID.String()))
	defer end(&err)

	if key.MemberID.IsNil() || key.EventID.IsNil() || key.TierID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "member, event and ticket tier are required")
	}

	_, err = s.runSection(ctx, "clear_override", key.EventID, key.TierID, func(txCtx context.Context) ([]audit.Event, error) {
		before, err := s.store.FindOverride(txCtx, key)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "override not found")
			}
			return nil, err
		}
		if err := s.store.DeleteOverride(txCtx, key); err != nil {
			return nil, err
		}
		return []audit.Event{overrideEvent(audit.ActionOverrideCleared, key, before, nil)}, nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "eligibility override cleared",
		"request_id", requestcontext.RequestID(ctx),
		"event_id", key.EventID.String(),
		"member_id", key.MemberID.String(),
		"tier_id", key.TierID.String(),
	)
	return nil
}
