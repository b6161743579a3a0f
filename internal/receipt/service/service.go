// Package service runs the post-payment receipt pipeline: resolve the
// registration, render the PDF receipt, email it, store a copy and record
// the outcome on the registration.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"confreg/internal/payment/gateway"
	payment "confreg/internal/payment/models"
	"confreg/internal/receipt/email"
	"confreg/internal/receipt/events"
	"confreg/internal/receipt/lock"
	"confreg/internal/receipt/metrics"
	"confreg/internal/receipt/pdf"
	"confreg/internal/receipt/records"
	"confreg/internal/receipt/settings"
	registration "confreg/internal/registration/models"
	"confreg/internal/registration/store"
	dErrors "confreg/pkg/domain-errors"
	"confreg/pkg/platform/sentinel"
	"confreg/pkg/requestcontext"
)

// Registrations reads and writes registration documents.
type Registrations interface {
	FindByRegistrationID(ctx context.Context, registrationID string) (*registration.Registration, error)
	Lookup(ctx context.Context, registrationID string) (*registration.Registration, error)
	Patch(ctx context.Context, documentID string, patch registration.Patch) error
	UploadReceipt(ctx context.Context, filename string, pdf []byte) (string, error)
}

type Renderer interface {
	Render(ctx context.Context, ev payment.PaymentEvent, reg *registration.Registration, s settings.Settings, generatedAt time.Time) ([]byte, error)
}

type Composer interface {
	Compose(to string, ev payment.PaymentEvent, reg *registration.Registration, s settings.Settings, receipt []byte, sentAt time.Time) (email.Message, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) (email.Result, error)
}

type SettingsProvider interface {
	Get(ctx context.Context) settings.Settings
}

// Orchestrator sequences one receipt run per payment event. Runs for the
// same registration are serialized by a lease.
type Orchestrator struct {
	registrations Registrations
	renderer      Renderer
	composer      Composer
	mailer        Mailer
	settings      SettingsProvider
	gateway       gateway.Capturer
	locker        lock.Locker
	lockTTL       time.Duration
	runTimeout    time.Duration
	records       records.Store
	publisher     events.Publisher
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	logger        *slog.Logger
}

type Option func(*Orchestrator)

func WithGateway(c gateway.Capturer) Option {
	return func(o *Orchestrator) { o.gateway = c }
}

func WithComposer(c Composer) Option {
	return func(o *Orchestrator) { o.composer = c }
}

// WithLocker replaces the process-local lock, e.g. with Redis.
func WithLocker(l lock.Locker, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.locker = l
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithRunTimeout bounds a single pipeline run. Runs are detached from the
// caller's cancellation, so this is the only deadline they observe.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.runTimeout = d
		}
	}
}

func WithRecords(s records.Store) Option {
	return func(o *Orchestrator) { o.records = s }
}

func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(regs Registrations, renderer Renderer, mailer Mailer, sp SettingsProvider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registrations: regs,
		renderer:      renderer,
		composer:      email.NewComposer(),
		mailer:        mailer,
		settings:      sp,
		locker:        lock.NewMemoryLocker(),
		lockTTL:       2 * time.Minute,
		runTimeout:    2 * time.Minute,
		publisher:     events.Nop{},
		tracer:        otel.Tracer("confreg/receipt"),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Process runs the pipeline for one payment. It fails only when the request
// is invalid, the registration cannot be found, or another run holds the
// registration; every later failure is recorded on the Result.
//
// Once started, a run ignores the caller's cancellation: an email that went
// out must be followed by the status patch that makes redeliveries no-ops.
func (o *Orchestrator) Process(ctx context.Context, req ProcessRequest) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
	defer cancel()
	now := requestcontext.Now(ctx)
	ev := req.event(now)

	ctx, span := o.tracer.Start(ctx, "receipt.process", trace.WithAttributes(
		attribute.String("registration.id", req.RegistrationID),
		attribute.String("payment.method", ev.Method.String()),
		attribute.String("payment.transaction_id", ev.TransactionID),
		attribute.Bool("receipt.force", req.ForceRetry),
	))
	defer span.End()

	log := o.logger.With(
		"registration_id", req.RegistrationID,
		"transaction_id", ev.TransactionID,
		"request_id", requestcontext.RequestID(ctx),
	)
	run := &run{o: o, log: log, res: &Result{
		RegistrationID: req.RegistrationID,
		TransactionID:  ev.TransactionID,
		Method:         ev.Method,
		State:          StateCaptured,
		Event:          ev,
		Forced:         req.ForceRetry,
	}}

	release, err := o.acquire(ctx, log, req.RegistrationID)
	if err != nil {
		o.finish(ctx, span, run.res, outcomeLocked, err)
		return nil, err
	}
	defer release()

	var reg *registration.Registration
	err = run.step(ctx, stepResolve, func(ctx context.Context) error {
		var ferr error
		reg, ferr = o.registrations.FindByRegistrationID(ctx, req.RegistrationID)
		return ferr
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.Wrap(fmt.Errorf("%w: %w", ErrRegistrationNotFound, err), dErrors.CodeNotFound, "Registration not found")
			o.finish(ctx, span, run.res, outcomeNotFound, err)
			return nil, err
		}
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, "registration lookup failed")
		o.finish(ctx, span, run.res, outcomeError, err)
		return nil, err
	}
	run.res.State = StateRegistrationResolved

	if !req.ForceRetry && reg.ReceiptComplete() {
		log.InfoContext(ctx, "receipt already processed, skipping")
		run.res.AlreadyProcessed = true
		run.res.EmailSent = true
		run.res.PDFGenerated = true
		run.res.PDFUploaded = reg.PDFReceiptStoredInSanity
		run.res.PDFAssetID = reg.PDFReceipt.AssetID()
		run.res.State = StateDone
		run.res.ProcessedAt = now
		o.finish(ctx, span, run.res, outcomeAlreadyProcessed, nil)
		return run.res, nil
	}

	tenant := o.settings.Get(ctx)
	recipient := firstNonBlank(req.CustomerEmail, reg.PersonalDetails.Email)

	var receipt []byte
	if run.step(ctx, stepRender, func(ctx context.Context) error {
		var rerr error
		receipt, rerr = o.renderer.Render(ctx, ev, reg, tenant, now)
		if rerr == nil && len(receipt) == 0 {
			rerr = fmt.Errorf("%w: empty document", ErrRendererUnavailable)
		}
		return rerr
	}) == nil {
		run.res.PDFGenerated = true
		run.res.State = StateReceiptRendered
	} else {
		receipt = nil
	}

	if run.step(ctx, stepEmail, func(ctx context.Context) error {
		if recipient == "" {
			return fmt.Errorf("%w: %w", ErrEmailDelivery, ErrNoRecipient)
		}
		msg, cerr := o.composer.Compose(recipient, ev, reg, tenant, receipt, now)
		if cerr != nil {
			return fmt.Errorf("%w: compose: %v", ErrEmailDelivery, cerr)
		}
		sent, serr := o.mailer.Send(ctx, msg)
		if serr != nil {
			return serr
		}
		run.res.MessageID = sent.MessageID
		run.res.EmailTransport = sent.Transport
		return nil
	}) == nil {
		run.res.EmailSent = true
		run.res.EmailRecipient = recipient
		run.res.State = StateEmailSent
	}

	if len(receipt) > 0 && tenant.StorePDF {
		if run.step(ctx, stepUpload, func(ctx context.Context) error {
			name := pdf.AssetName(req.RegistrationID, ev.Method, ev.TransactionID, now)
			assetID, uerr := o.registrations.UploadReceipt(ctx, name, receipt)
			if uerr != nil {
				return fmt.Errorf("%w: upload receipt: %w", ErrStoreWrite, uerr)
			}
			if perr := o.registrations.Patch(ctx, reg.DocumentID, registration.ReceiptAssetPatch(assetID, now)); perr != nil {
				return fmt.Errorf("%w: link receipt %s: %w", ErrStoreWrite, assetID, perr)
			}
			run.res.PDFAssetID = assetID
			return nil
		}) == nil {
			run.res.PDFUploaded = true
		}
	}

	status := reg.ProcessingStatus.Merge(run.nextStatus(now), req.ForceRetry)
	if run.step(ctx, stepStatus, func(ctx context.Context) error {
		if perr := o.registrations.Patch(ctx, reg.DocumentID, registration.StatusPatch(status, ev)); perr != nil {
			return fmt.Errorf("%w: status: %w", ErrStoreWrite, perr)
		}
		return nil
	}) == nil {
		run.res.StatusPersisted = true
		run.res.State = StatePersisted
	}

	if o.records != nil {
		_ = run.step(ctx, stepRecord, func(ctx context.Context) error {
			rec := records.New(req.RegistrationID, reg.DocumentID, ev, now)
			rec.EmailSent = run.res.EmailSent
			rec.EmailRecipient = run.res.EmailRecipient
			rec.ReceiptGenerated = run.res.PDFGenerated
			rec.PDFAssetID = run.res.PDFAssetID
			_, rerr := o.records.Upsert(ctx, rec)
			return rerr
		})
	}

	run.res.State = StateDone
	run.res.ProcessedAt = now
	o.finish(ctx, span, run.res, outcomeDone, nil)
	return run.res, nil
}

// acquire takes the registration lease. An unreachable lock backend is
// logged and the run proceeds unlocked rather than losing the receipt.
func (o *Orchestrator) acquire(ctx context.Context, log *slog.Logger, registrationID string) (func(), error) {
	lease, err := o.locker.Acquire(ctx, lock.RegistrationKey(registrationID), o.lockTTL)
	switch {
	case err == nil:
		return func() {
			if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
				log.WarnContext(ctx, "receipt lock release failed", "error", rerr)
			}
		}, nil
	case errors.Is(err, sentinel.ErrLocked):
		log.InfoContext(ctx, "receipt run already in progress")
		return nil, dErrors.Wrap(fmt.Errorf("%w: %w", ErrAlreadyProcessing, err), dErrors.CodeConflict, "Receipt processing already in progress")
	default:
		log.WarnContext(ctx, "receipt lock unavailable, continuing without it", "error", err)
		return func() {}, nil
	}
}

func (o *Orchestrator) finish(ctx context.Context, span trace.Span, res *Result, outcome string, err error) {
	o.metrics.ObserveRun(outcome, res.Method.String())
	span.SetAttributes(attribute.String("receipt.state", string(res.State)), attribute.String("receipt.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if outcome == outcomeLocked {
		return
	}

	pubErr := o.publisher.Publish(ctx, events.Outcome{
		Type:             events.TypeReceiptProcessed,
		RegistrationID:   res.RegistrationID,
		TransactionID:    res.TransactionID,
		Method:           res.Method.String(),
		State:            string(res.State),
		Success:          err == nil,
		AlreadyProcessed: res.AlreadyProcessed,
		Forced:           res.Forced,
		EmailSent:        res.EmailSent,
		PDFGenerated:     res.PDFGenerated,
		PDFUploaded:      res.PDFUploaded,
		Failures:         res.Failures,
	})
	if pubErr != nil {
		o.logger.DebugContext(ctx, "receipt outcome not published", "registration_id", res.RegistrationID, "error", pubErr)
	}
}

// run carries the state of one Process call.
type run struct {
	o   *Orchestrator
	log *slog.Logger
	res *Result
}

func (r *run) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := r.o.tracer.Start(ctx, "receipt."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	r.o.metrics.ObserveStep(name, elapsed, err != nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.log.ErrorContext(ctx, "receipt step failed", "step", name, "duration", elapsed, "error", err)
		r.res.Failures = append(r.res.Failures, events.StepFailure{Step: name, Error: err.Error()})
		return err
	}
	r.log.DebugContext(ctx, "receipt step done", "step", name, "duration", elapsed)
	return nil
}

func (r *run) nextStatus(now time.Time) registration.ProcessingStatus {
	next := registration.ProcessingStatus{
		PaymentStatus:            registration.PaymentCompleted,
		ReceiptEmailSent:         r.res.EmailSent,
		ReceiptEmailRecipient:    r.res.EmailRecipient,
		PDFReceiptGenerated:      r.res.PDFGenerated,
		PDFReceiptStoredInSanity: r.res.PDFUploaded,
		WebhookProcessed:         true,
		LastUpdated:              &now,
	}
	if r.res.EmailSent {
		next.ReceiptEmailSentAt = &now
		next.LastAutomaticProcessingResult = registration.ResultSucceeded
	} else {
		next.LastAutomaticProcessingResult = registration.ResultFailed
	}
	return next
}

// IsNotFound reports whether err means the registration does not exist.
func IsNotFound(err error) bool {
	var nf *store.NotFoundError
	return errors.Is(err, ErrRegistrationNotFound) || errors.As(err, &nf)
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
