package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for admission control: outcomes, promotions,
// capacity races and the length of the per-tier critical section.
// All methods are safe on a nil receiver.
type Metrics struct {
	Registrations          *prometheus.CounterVec
	Cancellations          prometheus.Counter
	Promotions             *prometheus.CounterVec
	Rejections             *prometheus.CounterVec
	ConflictRetries        prometheus.Counter
	AuditFailures          prometheus.Counter
	NotificationFailures   prometheus.Counter
	CriticalSectionSeconds prometheus.Histogram
}

// New registers the admission metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the admission metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhouse_registrations_total",
			Help: "Registrations admitted, by resulting status",
		}, []string{"status"}),
		Cancellations: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubhouse_cancellations_total",
			Help: "Registrations cancelled by members",
		}),
		Promotions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhouse_promotions_total",
			Help: "Waitlisted registrations confirmed, by trigger",
		}, []string{"trigger"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clubhouse_admission_rejections_total",
			Help: "Admission requests rejected, by error code",
		}, []string{"code"}),
		ConflictRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubhouse_admission_conflict_retries_total",
			Help: "Critical sections retried after a write conflict",
		}),
		AuditFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubhouse_audit_emit_failures_total",
			Help: "Audit events that could not be recorded",
		}),
		NotificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "clubhouse_notification_failures_total",
			Help: "Member notifications that could not be delivered",
		}),
		CriticalSectionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "clubhouse_critical_section_duration_seconds",
			Help:    "Time spent holding a tier's admission lock",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncRegistration(status string) {
	if m != nil {
		m.Registrations.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncCancellation() {
	if m != nil {
		m.Cancellations.Inc()
	}
}

func (m *Metrics) IncPromotion(trigger string) {
	if m != nil {
		m.Promotions.WithLabelValues(trigger).Inc()
	}
}

func (m *Metrics) IncRejection(code string) {
	if m != nil {
		m.Rejections.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncConflictRetry() {
	if m != nil {
		m.ConflictRetries.Inc()
	}
}

func (m *Metrics) IncAuditFailure() {
	if m != nil {
		m.AuditFailures.Inc()
	}
}

func (m *Metrics) IncNotificationFailure() {
	if m != nil {
		m.NotificationFailures.Inc()
	}
}

// ObserveCriticalSection records the time since start.
func (m *Metrics) ObserveCriticalSection(start time.Time) {
	if m != nil {
		m.CriticalSectionSeconds.Observe(time.Since(start).Seconds())
	}
}
