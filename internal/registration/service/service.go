// Package service is the registration admission controller: the only part of
// the admission core with side effects. It composes the pure status,
// eligibility and tier-metrics packages with a store that can run a critical
// section per (event, tier).
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"clubhouse/internal/eligibility"
	eventmodels "clubhouse/internal/event/models"
	membermodels "clubhouse/internal/member/models"
	regmetrics "clubhouse/internal/registration/metrics"
	"clubhouse/internal/registration/models"
	"clubhouse/internal/registration/notify"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
	"clubhouse/pkg/platform/audit"
)

// Store is the persistence the admission controller reads and writes.
type Store interface {
	FindEvent(ctx context.Context, eventID id.EventID) (*eventmodels.Event, error)
	FindTier(ctx context.Context, eventID id.EventID, tierID id.TierID) (*eventmodels.TicketTier, error)
	ListTiers(ctx context.Context, eventID id.EventID) ([]*eventmodels.TicketTier, error)
	FindMember(ctx context.Context, memberID id.MemberID) (*membermodels.Member, error)

	FindOverride(ctx context.Context, key eligibility.OverrideKey) (*eligibility.Override, error)
	ListOverrides(ctx context.Context, memberID id.MemberID, eventID id.EventID) ([]*eligibility.Override, error)
	UpsertOverride(ctx context.Context, override *eligibility.Override) error
	DeleteOverride(ctx context.Context, key eligibility.OverrideKey) error

	FindRegistration(ctx context.Context, registrationID id.RegistrationID) (*models.Registration, error)
	FindActiveRegistration(ctx context.Context, memberID id.MemberID, eventID id.EventID) (*models.Registration, error)
	ListRegistrations(ctx context.Context, eventID id.EventID) ([]*models.Registration, error)
	ListTierRegistrations(ctx context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error)
	ListWaitlist(ctx context.Context, eventID id.EventID, tierID id.TierID) ([]*models.Registration, error)
	InsertRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistration(ctx context.Context, reg *models.Registration) error
}

// StoreTx runs fn as one atomic section that excludes every other section for
// the same (event, tier). Store calls made with txCtx take part in it.
type StoreTx interface {
	RunInTierTx(ctx context.Context, eventID id.EventID, tierID id.TierID, fn func(txCtx context.Context) error) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, note notify.Notification) error
}

// AvailabilityCache is a read-side cache of tier metrics per event.
type AvailabilityCache interface {
	Get(ctx context.Context, eventID id.EventID) (*tiermetrics.Summary, bool, error)
	Set(ctx context.Context, eventID id.EventID, summary tiermetrics.Summary) error
	Invalidate(ctx context.Context, eventID id.EventID) error
}

// PromotionPolicy decides whether a cancellation frees a place for the head
// of the waitlist automatically.
type PromotionPolicy string

const (
	// PromotionAuto promotes the waitlist head when a confirmed registration
	// is cancelled.
	PromotionAuto PromotionPolicy = "auto"
	// PromotionManual leaves the waitlist untouched on cancellation; an
	// administrator promotes explicitly.
	PromotionManual PromotionPolicy = "manual"
)

const (
	defaultSectionTimeout = 10 * time.Second
	sideEffectTimeout     = 5 * time.Second
	tracerName            = "clubhouse/registration"
)

// Service executes register, cancel and promote as atomic transitions and
// serves the read models around them.
type Service struct {
	store          Store
	tx             StoreTx
	audit          *auditEmitter
	notifier       Notifier
	cache          AvailabilityCache
	metrics        *regmetrics.Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	policy         PromotionPolicy
	location       *time.Location
	sectionTimeout time.Duration
}

type serviceConfig struct {
	logger         *slog.Logger
	auditPublisher AuditPublisher
	failClosed     bool
	notifier       Notifier
	cache          AvailabilityCache
	metrics        *regmetrics.Metrics
	tracer         trace.Tracer
	policy         PromotionPolicy
	location       *time.Location
	sectionTimeout time.Duration
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *serviceConfig) {
		c.auditPublisher = publisher
	}
}

// WithAuditFailClosed records audit events inside the atomic section, so a
// failed audit write rolls the transition back.
func WithAuditFailClosed(failClosed bool) Option {
	return func(c *serviceConfig) {
		c.failClosed = failClosed
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *serviceConfig) {
		c.notifier = n
	}
}

func WithCache(cache AvailabilityCache) Option {
	return func(c *serviceConfig) {
		c.cache = cache
	}
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(c *serviceConfig) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *serviceConfig) {
		c.tracer = t
	}
}

func WithPromotionPolicy(p PromotionPolicy) Option {
	return func(c *serviceConfig) {
		c.policy = p
	}
}

// WithLocation sets the organisation timezone used for schedule defaults.
func WithLocation(loc *time.Location) Option {
	return func(c *serviceConfig) {
		c.location = loc
	}
}

// WithSectionTimeout bounds how long one atomic section may run once started.
func WithSectionTimeout(d time.Duration) Option {
	return func(c *serviceConfig) {
		c.sectionTimeout = d
	}
}

// New constructs the admission service.
func New(store Store, tx StoreTx, opts ...Option) *Service {
	cfg := &serviceConfig{
		policy:         PromotionAuto,
		sectionTimeout: defaultSectionTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	if cfg.location == nil {
		cfg.location = time.UTC
	}
	return &Service{
		store:          store,
		tx:             tx,
		audit:          newAuditEmitter(cfg.logger, cfg.auditPublisher, cfg.metrics, cfg.failClosed),
		notifier:       cfg.notifier,
		cache:          cfg.cache,
		metrics:        cfg.metrics,
		logger:         cfg.logger,
		tracer:         cfg.tracer,
		policy:         cfg.policy,
		location:       cfg.location,
		sectionTimeout: cfg.sectionTimeout,
	}
}
