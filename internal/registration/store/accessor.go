package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"confreg/internal/registration/models"
	"confreg/pkg/platform/retry"
	"confreg/pkg/platform/sentinel"
)

// Accessor is the pipeline's view of the registration store. Lookups are
// retried with linear backoff because a registration may be read moments
// after it was created.
type Accessor struct {
	store  Store
	policy retry.Policy
	logger *slog.Logger
}

// AccessorOption configures an Accessor.
type AccessorOption func(*Accessor)

// WithLookupPolicy sets the attempt budget and the linear backoff step.
func WithLookupPolicy(attempts int, step time.Duration) AccessorOption {
	return func(a *Accessor) {
		if attempts > 0 {
			a.policy.MaxAttempts = attempts
		}
		a.policy.Delay = retry.Linear(step)
	}
}

// WithSleep replaces the backoff wait, letting tests observe delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) AccessorOption {
	return func(a *Accessor) { a.policy.Sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AccessorOption {
	return func(a *Accessor) { a.logger = l }
}

func NewAccessor(store Store, opts ...AccessorOption) *Accessor {
	a := &Accessor{
		store:  store,
		policy: retry.Policy{MaxAttempts: 3, Delay: retry.Linear(time.Second)},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FindByRegistrationID looks the registration up at most MaxAttempts times.
// A registration that never appears yields *NotFoundError.
func (a *Accessor) FindByRegistrationID(ctx context.Context, registrationID string) (*models.Registration, error) {
	var (
		reg      *models.Registration
		attempts int
	)
	err := retry.Do(ctx, a.policy, func(ctx context.Context, attempt int) error {
		attempts = attempt
		found, err := a.store.FindByRegistrationID(ctx, registrationID)
		switch {
		case err == nil:
			reg = found
			return nil
		case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrUnavailable):
			a.logger.DebugContext(ctx, "registration lookup missed",
				"registration_id", registrationID,
				"attempt", attempt,
				"error", err,
			)
			return err
		default:
			return retry.Permanent(err)
		}
	})
	if err == nil {
		return reg, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		a.logger.WarnContext(ctx, "registration not found",
			"registration_id", registrationID,
			"attempts", attempts,
		)
		return nil, &NotFoundError{RegistrationID: registrationID, Attempts: attempts}
	}
	return nil, err
}

// Lookup reads the registration once, for callers that do not race a
// fresh write (status queries, operator tooling).
func (a *Accessor) Lookup(ctx context.Context, registrationID string) (*models.Registration, error) {
	reg, err := a.store.FindByRegistrationID(ctx, registrationID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, &NotFoundError{RegistrationID: registrationID, Attempts: 1}
	}
	return reg, err
}

// Patch applies a partial update; a vanished document yields *NotFoundError.
func (a *Accessor) Patch(ctx context.Context, documentID string, patch models.Patch) error {
	err := a.store.Patch(ctx, documentID, patch)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &NotFoundError{DocumentID: documentID}
	}
	return err
}

// UploadReceipt stores a rendered receipt and returns its asset id.
func (a *Accessor) UploadReceipt(ctx context.Context, filename string, pdf []byte) (string, error) {
	return a.store.UploadFile(ctx, filename, "application/pdf", pdf)
}
