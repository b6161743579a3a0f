package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"confreg/internal/platform/config"
)

// Result describes a delivered message.
type Result struct {
	MessageID     string
	Transport     string
	UsedAlternate bool
}

// Dispatcher sends one message per call. The primary transport is verified
// first; if that fails, at most one alternate is tried.
type Dispatcher struct {
	primary    TransportConfig
	sender     Sender
	newTrans   TransportFactory
	logger     *slog.Logger
	onFallback func(from, to string)
}

type Option func(*Dispatcher)

func WithTransportFactory(f TransportFactory) Option {
	return func(d *Dispatcher) { d.newTrans = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithFallbackObserver is called whenever the alternate transport is tried.
func WithFallbackObserver(fn func(from, to string)) Option {
	return func(d *Dispatcher) { d.onFallback = fn }
}

func NewDispatcher(cfg config.SMTP, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		primary:  TransportConfigFromSMTP(cfg),
		sender:   Sender{Name: cfg.FromName, Address: cfg.From},
		newTrans: NewGoMailTransport,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers msg. Every failure wraps ErrDelivery.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (Result, error) {
	if err := msg.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	t, cfg, alternate, err := d.connect(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			d.logger.DebugContext(ctx, "smtp close failed", "transport", cfg.Name(), "error", cerr)
		}
	}()

	from := d.sender
	if msg.FromName != "" {
		from.Name = msg.FromName
	}
	id, err := t.Send(ctx, from, msg)
	if err != nil {
		return Result{}, fmt.Errorf("%w: send via %s: %v", ErrDelivery, cfg.Name(), err)
	}
	d.logger.InfoContext(ctx, "receipt email sent",
		"transport", cfg.Name(),
		"alternate", alternate,
		"message_id", id,
		"attachment", msg.HasAttachment(),
	)
	return Result{MessageID: id, Transport: cfg.Name(), UsedAlternate: alternate}, nil
}

func (d *Dispatcher) connect(ctx context.Context) (Transport, TransportConfig, bool, error) {
	t, perr := d.verified(ctx, d.primary)
	if perr == nil {
		return t, d.primary, false, nil
	}
	d.logger.WarnContext(ctx, "smtp verify failed on primary transport", "transport", d.primary.Name(), "error", perr)

	alt, ok := d.primary.Alternate()
	if !ok {
		return nil, TransportConfig{}, false, fmt.Errorf("%w: %v", ErrDelivery, perr)
	}
	if d.onFallback != nil {
		d.onFallback(d.primary.Name(), alt.Name())
	}
	t, aerr := d.verified(ctx, alt)
	if aerr != nil {
		d.logger.ErrorContext(ctx, "smtp verify failed on alternate transport", "transport", alt.Name(), "error", aerr)
		return nil, TransportConfig{}, false, fmt.Errorf("%w: %v", ErrDelivery, errors.Join(perr, aerr))
	}
	return t, alt, true, nil
}

func (d *Dispatcher) verified(ctx context.Context, cfg TransportConfig) (Transport, error) {
	t, err := d.newTrans(cfg)
	if err != nil {
		return nil, err
	}
	if err := t.Verify(ctx); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}
