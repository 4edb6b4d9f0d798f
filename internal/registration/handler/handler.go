package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clubhouse/internal/eligibility"
	"clubhouse/internal/event/status"
	"clubhouse/internal/registration/models"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/httputil"
	"clubhouse/pkg/requestcontext"
)

// Service defines the admission operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, eventID id.EventID, memberID id.MemberID, tierID id.TierID) (*models.RegisterResult, error)
	Cancel(ctx context.Context, eventID id.EventID, memberID id.MemberID) error
	Promote(ctx context.Context, registrationID id.RegistrationID, overrideCapacity bool) (*models.PromoteResult, error)
	GetEligibility(ctx context.Context, eventID id.EventID, memberID id.MemberID) (*models.EligibilityView, error)
	Availability(ctx context.Context, eventID id.EventID) (*tiermetrics.Summary, error)
	EventStatus(ctx context.Context, eventID id.EventID) (status.Snapshot, error)
	ScheduleDefaults(ctx context.Context, requiresRegistration bool) status.Schedule
	Waitlist(ctx context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error)
	SetOverride(ctx context.Context, key eligibility.OverrideKey, outcome eligibility.OverrideOutcome, reason string) (*eligibility.Override, error)
	ClearOverride(ctx context.Context, key eligibility.OverrideKey) error
}

// Middleware wraps a route group, e.g. member or administrator authentication.
type Middleware = func(http.Handler) http.Handler

// Handler wires admission endpoints to the registration service.
type Handler struct {
	service    Service
	logger     *slog.Logger
	memberAuth Middleware
	adminAuth  Middleware
}

// New constructs a registration handler. memberAuth must place the verified
// member in the request context; adminAuth gates the /admin routes.
func New(service Service, logger *slog.Logger, memberAuth, adminAuth Middleware) *Handler {
	return &Handler{
		service:    service,
		logger:     logger,
		memberAuth: memberAuth,
		adminAuth:  adminAuth,
	}
}

// Register mounts the public, member and administrator routes on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events/{eventID}/availability", h.HandleAvailability)
	r.Get("/events/{eventID}/status", h.HandleEventStatus)
	r.Get("/schedule/defaults", h.HandleScheduleDefaults)

	r.Group(func(r chi.Router) {
		r.Use(h.memberAuth)
		r.Post("/events/{eventID}/registrations", h.HandleRegister)
		r.Delete("/events/{eventID}/registrations/me", h.HandleCancel)
		r.Get("/events/{eventID}/eligibility", h.HandleEligibility)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.adminAuth)
		r.Post("/registrations/{registrationID}/promote", h.HandlePromote)
		r.Get("/events/{eventID}/tiers/{tierID}/waitlist", h.HandleWaitlist)
		r.Put("/events/{eventID}/tiers/{tierID}/overrides/{memberID}", h.HandleSetOverride)
		r.Delete("/events/{eventID}/tiers/{tierID}/overrides/{memberID}", h.HandleClearOverride)
	})
}

// HandleRegister handles POST /events/{eventID}/registrations.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	memberID, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Register(ctx, eventID, memberID, req.tierID)
	if err != nil {
		h.logFailure(ctx, "registration rejected", err,
			"event_id", eventID.String(),
			"member_id", memberID.String(),
			"tier_id", req.tierID.String(),
		)
		httputil.WriteError(w, err)
		return
	}

	code := http.StatusCreated
	if result.Status == models.StatusWaitlisted {
		code = http.StatusAccepted
	}
	httputil.WriteJSON(w, code, FromRegisterResult(result))
}

// HandleCancel handles DELETE /events/{eventID}/registrations/me.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Cancel(ctx, eventID, memberID); err != nil {
		h.logFailure(ctx, "cancellation rejected", err,
			"event_id", eventID.String(),
			"member_id", memberID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEligibility handles GET /events/{eventID}/eligibility.
func (h *Handler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, ok := h.requireMember(w, r)
	if !ok {
		return
	}
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	view, err := h.service.GetEligibility(ctx, eventID, memberID)
	if err != nil {
		h.logFailure(ctx, "eligibility lookup failed", err, "event_id", eventID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromEligibilityView(view))
}

// HandleAvailability handles GET /events/{eventID}/availability.
func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary, err := h.service.Availability(ctx, eventID)
	if err != nil {
		h.logFailure(ctx, "availability lookup failed", err, "event_id", eventID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

// HandleEventStatus handles GET /events/{eventID}/status.
func (h *Handler) HandleEventStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snap, err := h.service.EventStatus(ctx, eventID)
	if err != nil {
		h.logFailure(ctx, "event status lookup failed", err, "event_id", eventID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSnapshot(eventID, snap, requestcontext.Now(ctx)))
}

// HandleScheduleDefaults handles GET /schedule/defaults.
func (h *Handler) HandleScheduleDefaults(w http.ResponseWriter, r *http.Request) {
	requiresRegistration := true
	if raw := r.URL.Query().Get("requires_registration"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "requires_registration must be a boolean"))
			return
		}
		requiresRegistration = v
	}
	httputil.WriteJSON(w, http.StatusOK, FromSchedule(h.service.ScheduleDefaults(r.Context(), requiresRegistration)))
}

// HandlePromote handles POST /admin/registrations/{registrationID}/promote.
func (h *Handler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	registrationID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[PromoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Promote(ctx, registrationID, req.OverrideCapacity)
	if err != nil {
		h.logFailure(ctx, "promotion rejected", err,
			"registration_id", registrationID.String(),
			"override_capacity", req.OverrideCapacity,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromPromoteResult(result))
}

// HandleWaitlist handles GET /admin/events/{eventID}/tiers/{tierID}/waitlist.
func (h *Handler) HandleWaitlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID, tierID, ok := parseEventTier(w, r)
	if !ok {
		return
	}

	regs, err := h.service.Waitlist(ctx, eventID, tierID)
	if err != nil {
		h.logFailure(ctx, "waitlist lookup failed", err,
			"event_id", eventID.String(),
			"tier_id", tierID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromWaitlist(eventID, tierID, regs))
}

// HandleSetOverride handles PUT /admin/events/{eventID}/tiers/{tierID}/overrides/{memberID}.
func (h *Handler) HandleSetOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	key, ok := parseOverrideKey(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetOverrideRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	override, err := h.service.SetOverride(ctx, key, req.outcome, req.Reason)
	if err != nil {
		h.logFailure(ctx, "override rejected", err,
			"event_id", key.EventID.String(),
			"tier_id", key.TierID.String(),
			"member_id", key.MemberID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromOverride(override))
}

// HandleClearOverride handles DELETE /admin/events/{eventID}/tiers/{tierID}/overrides/{memberID}.
func (h *Handler) HandleClearOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key, ok := parseOverrideKey(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearOverride(ctx, key); err != nil {
		h.logFailure(ctx, "override clear rejected", err,
			"event_id", key.EventID.String(),
			"tier_id", key.TierID.String(),
			"member_id", key.MemberID.String(),
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireMember reads the member placed in context by the auth middleware.
func (h *Handler) requireMember(w http.ResponseWriter, r *http.Request) (id.MemberID, bool) {
	memberID := requestcontext.MemberID(r.Context())
	if memberID.IsNil() {
		h.logger.ErrorContext(r.Context(), "member missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.MemberID{}, false
	}
	return memberID, true
}

// logFailure logs expected rejections at warn and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
		"code", dErrors.CodeOf(err),
	)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, attrs...)
		return
	}
	h.logger.WarnContext(ctx, msg, attrs...)
}

func parseEventTier(w http.ResponseWriter, r *http.Request) (id.EventID, id.TierID, bool) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EventID{}, id.TierID{}, false
	}
	tierID, err := id.ParseTierID(chi.URLParam(r, "tierID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.EventID{}, id.TierID{}, false
	}
	return eventID, tierID, true
}

func parseOverrideKey(w http.ResponseWriter, r *http.Request) (eligibility.OverrideKey, bool) {
	eventID, tierID, ok := parseEventTier(w, r)
	if !ok {
		return eligibility.OverrideKey{}, false
	}
	memberID, err := id.ParseMemberID(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.WriteError(w, err)
		return eligibility.OverrideKey{}, false
	}
	return eligibility.OverrideKey{MemberID: memberID, EventID: eventID, TierID: tierID}, true
}
