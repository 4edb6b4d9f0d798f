package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	regmetrics "clubhouse/internal/registration/metrics"
	"clubhouse/internal/registration/models"
	"clubhouse/internal/registration/notify"
	"clubhouse/internal/registration/service/mocks"
	"clubhouse/internal/registration/store"
	"clubhouse/internal/tiermetrics"
	id "clubhouse/pkg/domain"
	dErrors "clubhouse/pkg/domain-errors"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/platform/audit/publisher"
	"clubhouse/pkg/platform/sentinel"
)

// conflictingStore fails the next n inserts with a write conflict, the way
// Postgres reports a serialization failure.
type conflictingStore struct {
	*store.InMemory
	mu       sync.Mutex
	failures int
}

func (c *conflictingStore) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	c.mu.Lock()
	fail := c.failures > 0
	if fail {
		c.failures--
	}
	c.mu.Unlock()
	if fail {
		return fmt.Errorf("insert registration: %w", sentinel.ErrConflict)
	}
	return c.InMemory.InsertRegistration(ctx, reg)
}

func (s *ServiceSuite) TestConflictRetry() {
	tier := s.standardTier(5)

	s.Run("one conflict is retried", func() {
		metrics := regmetrics.NewWithRegistry(prometheus.NewRegistry())
		cs := &conflictingStore{InMemory: s.store, failures: 1}
		svc := New(cs, cs, WithMetrics(metrics))

		res, err := svc.Register(s.ctx, s.event.ID, s.activeMember(), tier.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusConfirmed, res.Status)
		s.Equal(1.0, promtest.ToFloat64(metrics.ConflictRetries))
	})

	s.Run("a second conflict surfaces", func() {
		metrics := regmetrics.NewWithRegistry(prometheus.NewRegistry())
		cs := &conflictingStore{InMemory: s.store, failures: 2}
		svc := New(cs, cs, WithMetrics(metrics))
		member := s.activeMember()

		_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(ReasonCapacityRace, dErrors.ReasonOf(err))
		s.Equal(1.0, promtest.ToFloat64(metrics.Rejections.WithLabelValues(string(dErrors.CodeConflict))))

		_, err = s.store.FindActiveRegistration(s.ctx, member, s.event.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ServiceSuite) TestCancelledRequestIsRejectedBeforeTheSection() {
	tier := s.standardTier(5)
	member := s.activeMember()
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.service.Register(ctx, s.event.ID, member, tier.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	_, err = s.store.FindActiveRegistration(s.ctx, member, s.event.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// cancellingStore cancels the caller's request while the insert is running,
// as a client disconnecting mid-admission would.
type cancellingStore struct {
	*store.InMemory
	cancel    context.CancelFunc
	sectionOK bool
}

func (c *cancellingStore) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	c.cancel()
	c.sectionOK = ctx.Err() == nil
	return c.InMemory.InsertRegistration(ctx, reg)
}

func (s *ServiceSuite) TestCancelledRequestDoesNotAbortStartedSection() {
	tier := s.standardTier(1)
	member := s.activeMember()
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	cs := &cancellingStore{InMemory: s.store, cancel: cancel}
	svc := New(cs, cs, WithAuditPublisher(publisher.NewPublisher(s.auditStore)))

	res, err := svc.Register(ctx, s.event.ID, member, tier.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusConfirmed, res.Status)
	s.True(cs.sectionOK, "the section runs on a context detached from the request")
	s.ErrorIs(ctx.Err(), context.Canceled)

	reg, err := s.store.FindActiveRegistration(s.ctx, member, s.event.ID)
	s.Require().NoError(err)
	s.Equal(res.Registration.ID, reg.ID)

	events, err := s.auditStore.ListByResource(s.ctx, audit.ResourceRegistration, reg.ID.String())
	s.Require().NoError(err)
	s.Len(events, 1, "post-commit audit survives the cancelled request")
}

// stallingStore blocks the insert until the section deadline expires.
type stallingStore struct {
	*store.InMemory
}

func (st *stallingStore) InsertRegistration(ctx context.Context, _ *models.Registration) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *ServiceSuite) TestSectionTimeout() {
	tier := s.standardTier(5)
	member := s.activeMember()
	st := &stallingStore{InMemory: s.store}
	svc := New(st, st, WithSectionTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout), "got %v", err)
	s.Less(time.Since(start), 5*time.Second)

	_, err = s.store.FindActiveRegistration(s.ctx, member, s.event.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ServiceSuite) TestOperationSpans() {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	svc := s.newService(WithTracer(provider.Tracer("test")))
	tier := s.standardTier(1)
	member := s.activeMember()

	_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
	s.Require().NoError(err)
	_, err = svc.Register(s.ctx, s.event.ID, member, tier.ID)
	s.Require().Error(err)

	var names []string
	var failed int
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
		if span.Name() == "registration.Register" && span.Status().Code == codes.Error {
			failed++
		}
	}
	s.Contains(names, "registration.Register")
	s.Contains(names, "registration.critical_section")
	s.Equal(1, failed, "only the duplicate registration is marked as an error")
}

func (s *ServiceSuite) TestAuditFailureModes() {
	tier := s.standardTier(5)
	s.auditStore.FailWith(errors.New("audit store down"))

	s.Run("fail-open keeps the transition", func() {
		metrics := regmetrics.NewWithRegistry(prometheus.NewRegistry())
		svc := s.newService(WithMetrics(metrics))
		member := s.activeMember()

		_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
		s.Require().NoError(err)
		s.Equal(1.0, promtest.ToFloat64(metrics.AuditFailures))

		_, err = s.store.FindActiveRegistration(s.ctx, member, s.event.ID)
		s.NoError(err)
	})

	s.Run("fail-closed rolls the transition back", func() {
		svc := s.newService(WithAuditFailClosed(true))
		member := s.activeMember()

		_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		_, err = s.store.FindActiveRegistration(s.ctx, member, s.event.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ServiceSuite) TestAuditRecordsFailClosedInsideSection() {
	ctrl := gomock.NewController(s.T())
	publisher := mocks.NewMockAuditPublisher(ctrl)
	svc := New(s.store, s.store, WithAuditPublisher(publisher), WithAuditFailClosed(true))
	tier := s.standardTier(1)
	member := s.activeMember()

	publisher.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ev audit.Event) error {
			// The registration is visible inside the section before commit.
			_, err := s.store.FindActiveRegistration(ctx, member, s.event.ID)
			s.NoError(err)
			s.Equal(audit.ActionRegistrationConfirmed, ev.Action)
			s.Equal(s.now, ev.Timestamp)
			return nil
		})

	_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestNotifications() {
	tier := s.standardTier(1)

	s.Run("each outcome notifies the member", func() {
		ctrl := gomock.NewController(s.T())
		notifier := mocks.NewMockNotifier(ctrl)
		svc := s.newService(WithNotifier(notifier))
		holder, queued := s.activeMember(), s.activeMember()

		gomock.InOrder(
			notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, n notify.Notification) error {
					s.Equal(notify.KindConfirmed, n.Kind)
					s.Equal(holder, n.MemberID)
					return nil
				}),
			notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, n notify.Notification) error {
					s.Equal(notify.KindWaitlisted, n.Kind)
					s.Equal(1, n.WaitlistPosition)
					return nil
				}),
			notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, n notify.Notification) error {
					s.Equal(notify.KindPromoted, n.Kind)
					s.Equal(queued, n.MemberID)
					s.Equal(0, n.WaitlistPosition)
					return nil
				}),
		)

		_, err := svc.Register(s.ctx, s.event.ID, holder, tier.ID)
		s.Require().NoError(err)
		_, err = svc.Register(s.ctx, s.event.ID, queued, tier.ID)
		s.Require().NoError(err)
		s.Require().NoError(svc.Cancel(s.ctx, s.event.ID, holder))
	})

	s.Run("a failed notification does not fail the request", func() {
		ctrl := gomock.NewController(s.T())
		notifier := mocks.NewMockNotifier(ctrl)
		metrics := regmetrics.NewWithRegistry(prometheus.NewRegistry())
		svc := s.newService(WithNotifier(notifier), WithMetrics(metrics))

		notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("broker unreachable"))

		res, err := svc.Register(s.ctx, s.event.ID, s.activeMember(), tier.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusWaitlisted, res.Status)
		s.Equal(1.0, promtest.ToFloat64(metrics.NotificationFailures))
	})
}

func (s *ServiceSuite) TestAvailabilityCache() {
	tier := s.standardTier(3)

	s.Run("hit is served without touching the store", func() {
		ctrl := gomock.NewController(s.T())
		cache := mocks.NewMockAvailabilityCache(ctrl)
		svc := s.newService(WithCache(cache))
		cached := &tiermetrics.Summary{TotalAvailable: 99, CapacityStatus: tiermetrics.CapacityUndersubscribed}

		cache.EXPECT().Get(gomock.Any(), s.event.ID).Return(cached, true, nil)

		got, err := svc.Availability(s.ctx, s.event.ID)
		s.Require().NoError(err)
		s.Equal(99, got.TotalAvailable)
	})

	s.Run("miss aggregates and fills the cache", func() {
		ctrl := gomock.NewController(s.T())
		cache := mocks.NewMockAvailabilityCache(ctrl)
		svc := s.newService(WithCache(cache))

		cache.EXPECT().Get(gomock.Any(), s.event.ID).Return(nil, false, nil)
		cache.EXPECT().Set(gomock.Any(), s.event.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ id.EventID, summary tiermetrics.Summary) error {
				s.Equal(3, summary.TotalAvailable)
				return nil
			})

		got, err := svc.Availability(s.ctx, s.event.ID)
		s.Require().NoError(err)
		s.Equal(3, got.TotalRemaining)
	})

	s.Run("cache errors fall back to the store", func() {
		ctrl := gomock.NewController(s.T())
		cache := mocks.NewMockAvailabilityCache(ctrl)
		svc := s.newService(WithCache(cache))

		cache.EXPECT().Get(gomock.Any(), s.event.ID).Return(nil, false, errors.New("redis down"))
		cache.EXPECT().Set(gomock.Any(), s.event.ID, gomock.Any()).Return(errors.New("redis down"))

		got, err := svc.Availability(s.ctx, s.event.ID)
		s.Require().NoError(err)
		s.Equal(tiermetrics.CapacityUndersubscribed, got.CapacityStatus)
	})

	s.Run("committed transitions invalidate", func() {
		ctrl := gomock.NewController(s.T())
		cache := mocks.NewMockAvailabilityCache(ctrl)
		svc := s.newService(WithCache(cache))
		member := s.activeMember()

		cache.EXPECT().Invalidate(gomock.Any(), s.event.ID).Return(nil).Times(2)

		_, err := svc.Register(s.ctx, s.event.ID, member, tier.ID)
		s.Require().NoError(err)
		s.Require().NoError(svc.Cancel(s.ctx, s.event.ID, member))
	})

	s.Run("rejected requests leave the cache alone", func() {
		ctrl := gomock.NewController(s.T())
		cache := mocks.NewMockAvailabilityCache(ctrl)
		svc := s.newService(WithCache(cache))

		err := svc.Cancel(s.ctx, s.event.ID, s.activeMember())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
