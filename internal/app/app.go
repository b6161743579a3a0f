// Package app builds the receipt pipeline from configuration. The HTTP
// server and the operator CLI share it so both run the same wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"confreg/internal/payment/gateway"
	"confreg/internal/platform/config"
	"confreg/internal/platform/kafka"
	platformmetrics "confreg/internal/platform/metrics"
	"confreg/internal/platform/postgres"
	"confreg/internal/platform/redis"
	"confreg/internal/platform/sanity"
	"confreg/internal/receipt/email"
	"confreg/internal/receipt/events"
	"confreg/internal/receipt/lock"
	receiptmetrics "confreg/internal/receipt/metrics"
	"confreg/internal/receipt/pdf"
	"confreg/internal/receipt/records"
	"confreg/internal/receipt/service"
	"confreg/internal/receipt/settings"
	"confreg/internal/registration/store"
	"confreg/pkg/platform/circuit"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Receipts    *service.Orchestrator
	Razorpay    *gateway.Razorpay
	PayPal      *gateway.PayPal
	HTTPMetrics *platformmetrics.Metrics
	Registry    *prometheus.Registry

	checks  map[string]func(context.Context) error
	closers []func()
}

type options struct {
	gateways bool
}

type Option func(*options)

// WithGateways wires PayPal and Razorpay capture. The CLI never captures.
func WithGateways() Option {
	return func(o *options) { o.gateways = true }
}

// Build connects every configured backend. Optional backends (Redis,
// Postgres, Kafka) are skipped when unset but fail the build when set and
// unreachable.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a := &App{
		HTTPMetrics: platformmetrics.NewWithRegisterer(reg),
		Registry:    reg,
		checks:      map[string]func(context.Context) error{},
	}
	rm := receiptmetrics.NewWithRegisterer(reg)

	cms := sanity.New(cfg.Sanity)
	registrations := store.NewAccessor(store.NewSanityStore(cms),
		store.WithLookupPolicy(cfg.Receipt.LookupAttempts, cfg.Receipt.LookupBackoffStep),
		store.WithLogger(logger),
	)

	tenant := settings.NewProvider(settings.NewSanitySource(cms), settings.Defaults(),
		settings.WithTTL(cfg.Receipt.SettingsTTL),
		settings.WithLogger(logger),
		settings.WithBreaker(circuit.New("sanity-settings", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second))),
		settings.WithBreakerObserver(rm.SetSettingsBreaker),
	)

	renderer := pdf.NewRenderer(
		pdf.WithLogoFetcher(pdf.NewHTTPLogoFetcher(&http.Client{}, cfg.Receipt.LogoFetchTimeout)),
		pdf.WithLogger(logger),
	)

	mailer := email.NewDispatcher(cfg.SMTP,
		email.WithLogger(logger),
		email.WithFallbackObserver(rm.IncEmailFallback),
	)

	svcOpts := []service.Option{
		service.WithMetrics(rm),
		service.WithLogger(logger),
		service.WithRunTimeout(cfg.Receipt.LockTTL),
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	if rc != nil {
		a.closers = append(a.closers, func() { _ = rc.Close() })
		a.checks["redis"] = rc.Health
		svcOpts = append(svcOpts, service.WithLocker(lock.NewRedisLocker(rc.Client), cfg.Receipt.LockTTL))
		logger.InfoContext(ctx, "receipt lock backed by redis")
	} else {
		svcOpts = append(svcOpts, service.WithLocker(lock.NewMemoryLocker(), cfg.Receipt.LockTTL))
		logger.WarnContext(ctx, "REDIS_URL not set, receipt lock is process-local")
	}

	db, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if db != nil {
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.checks["postgres"] = db.PingContext
		pg := records.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("payment records schema: %w", err)
		}
		svcOpts = append(svcOpts, service.WithRecords(pg))
	} else {
		svcOpts = append(svcOpts, service.WithRecords(records.NewSanityStore(cms)))
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("kafka: %w", err)
	}
	if producer != nil {
		pub := events.NewKafkaPublisher(producer,
			events.WithLogger(logger),
			events.WithDropObserver(rm.IncEventDropped),
		)
		// Drain the publisher before closing the client it writes to.
		a.closers = append(a.closers, pub.Close, producer.Close)
		a.checks["kafka"] = producer.Health
		svcOpts = append(svcOpts, service.WithPublisher(pub))
	}

	if o.gateways {
		a.Razorpay = gateway.NewRazorpay(cfg.Razorpay, gateway.WithRazorpayLogger(logger))
		a.PayPal = gateway.NewPayPal(cfg.PayPal, gateway.WithPayPalLogger(logger))
		svcOpts = append(svcOpts, service.WithGateway(gateway.NewSet(a.PayPal, a.Razorpay)))
	}

	a.Receipts = service.New(registrations, renderer, mailer, tenant, svcOpts...)
	return a, nil
}

// Health runs every backend check and joins the failures.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	for name, check := range a.checks {
		if err := check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases backends in the order they were opened.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
