package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"clubhouse/internal/platform/config"
	"clubhouse/internal/platform/httpserver"
	"clubhouse/internal/platform/logger"
	"clubhouse/internal/platform/metrics"
	"clubhouse/internal/platform/postgres"
	"clubhouse/internal/platform/redis"
	"clubhouse/internal/platform/tracing"
	"clubhouse/internal/registration/cache"
	"clubhouse/internal/registration/handler"
	regmetrics "clubhouse/internal/registration/metrics"
	"clubhouse/internal/registration/notify"
	"clubhouse/internal/registration/service"
	"clubhouse/internal/registration/store"
	"clubhouse/pkg/platform/audit"
	"clubhouse/pkg/platform/audit/outbox"
	"clubhouse/pkg/platform/audit/publisher"
	auditmemory "clubhouse/pkg/platform/audit/store/memory"
	auditpostgres "clubhouse/pkg/platform/audit/store/postgres"
	"clubhouse/pkg/platform/circuit"
	"clubhouse/pkg/platform/middleware/admin"
	"clubhouse/pkg/platform/middleware/auth"
	"clubhouse/pkg/platform/middleware/metadata"
	"clubhouse/pkg/platform/middleware/ratelimit"
	"clubhouse/pkg/platform/middleware/request"
	"clubhouse/pkg/platform/middleware/requesttime"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	var (
		regStore interface {
			service.Store
			service.StoreTx
		}
		auditStore audit.Store
		outboxDB   *auditpostgres.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer closeQuietly(log, "postgres", db)
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		regStore = store.NewPostgres(db)
		outboxDB = auditpostgres.New(db)
		auditStore = outboxDB
		log.Info("using postgres store")
	} else {
		regStore = store.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory store")
	}

	// A fail-closed audit write must join the admission transaction, so it
	// cannot be buffered.
	pubOpts := []publisher.Option{publisher.WithLogger(log)}
	if !cfg.Admission.AuditFailClosed {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(1024))
	}
	auditPublisher := publisher.NewPublisher(auditStore, pubOpts...)
	defer auditPublisher.Close()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(auditPublisher),
		service.WithAuditFailClosed(cfg.Admission.AuditFailClosed),
		service.WithMetrics(regmetrics.New()),
		service.WithPromotionPolicy(service.PromotionPolicy(cfg.Admission.PromotionPolicy)),
		service.WithLocation(cfg.Location()),
		service.WithSectionTimeout(cfg.Admission.SectionTimeout),
		service.WithTracer(otel.Tracer("clubhouse/registration")),
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer closeQuietly(log, "redis", redisClient)
		opts = append(opts, service.WithCache(cache.NewAvailability(redisClient.Client, cfg.Admission.AvailabilityCacheTTL)))
	}

	if cfg.Notify.AMQPURL != "" {
		notifier, err := notify.DialAMQP(cfg.Notify.AMQPURL, cfg.Notify.Queue)
		if err != nil {
			return err
		}
		defer closeQuietly(log, "amqp", notifier)
		guarded := notify.NewGuardedNotifier(notifier, notify.NewLogNotifier(log), circuit.New("amqp"), log)
		opts = append(opts, service.WithNotifier(guarded))
	} else {
		opts = append(opts, service.WithNotifier(notify.NewLogNotifier(log)))
	}

	svc := service.New(regStore, regStore, opts...)

	validator := auth.NewHS256Validator(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	if cfg.Auth.AdminTokenHash == "" {
		log.Warn("ADMIN_TOKEN_HASH not set, administrator routes are disabled")
	}
	limiter := ratelimit.NewWindow(cfg.Admission.MemberRequestsPerMinute, time.Minute)
	requireMember := auth.RequireMember(validator, log)
	throttle := ratelimit.PerMember(limiter, log)
	h := handler.New(svc, log,
		func(next http.Handler) http.Handler { return requireMember(throttle(next)) },
		admin.RequireAdminToken(cfg.Auth.AdminTokenHash, log))

	httpMetrics := metrics.NewHTTP()
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log, httpMetrics.Observe))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h.Register(r)

	srv := httpserver.New(cfg.Addr, r)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting clubhouse", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	})

	if outboxDB != nil && len(cfg.Kafka.Brokers) > 0 {
		client, err := outbox.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := outbox.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			log.Warn("could not ensure audit topic", "error", err, "topic", cfg.Kafka.AuditTopic)
		}
		relay := outbox.NewRelay(outboxDB, client, cfg.Kafka.AuditTopic,
			outbox.WithInterval(cfg.Kafka.RelayInterval),
			outbox.WithLogger(log))
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit outbox relay started", "topic", cfg.Kafka.AuditTopic, "brokers", cfg.Kafka.Brokers)
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

type closer interface{ Close() error }

func closeQuietly(log *slog.Logger, name string, c closer) {
	if err := c.Close(); err != nil {
		log.Warn("close failed", "resource", name, "error", err)
	}
}
