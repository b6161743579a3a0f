package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"confreg/pkg/platform/circuit"
	"confreg/pkg/requestcontext"
)

// ErrDropped is returned when an outcome is discarded without delivery.
var ErrDropped = errors.New("event dropped")

// Producer is the subset of the Kafka producer used here.
type Producer interface {
	Produce(ctx context.Context, key, value []byte, headers map[string]string) error
}

// KafkaPublisher writes outcomes as JSON keyed by registration id, so all
// events for one registration land on the same partition in order.
type KafkaPublisher struct {
	producer Producer
	breaker  *circuit.Breaker
	logger   *slog.Logger
	timeout  time.Duration
	onDrop   func(reason string)

	mu     sync.RWMutex
	closed bool
	inbox  chan Outcome
	wg     sync.WaitGroup
}

type Option func(*KafkaPublisher)

// WithAsyncBuffer queues up to n outcomes and sends them from a background
// goroutine. A full buffer drops the outcome.
func WithAsyncBuffer(n int) Option {
	return func(p *KafkaPublisher) {
		if n > 0 {
			p.inbox = make(chan Outcome, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *KafkaPublisher) { p.breaker = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *KafkaPublisher) { p.logger = l }
}

// WithProduceTimeout bounds each broker write.
func WithProduceTimeout(d time.Duration) Option {
	return func(p *KafkaPublisher) { p.timeout = d }
}

// WithDropObserver is told why an outcome was discarded.
func WithDropObserver(fn func(reason string)) Option {
	return func(p *KafkaPublisher) { p.onDrop = fn }
}

func NewKafkaPublisher(producer Producer, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{
		producer: producer,
		breaker:  circuit.New("kafka-events", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		logger:   slog.Default(),
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Publish fills in id, type and request id, then sends or enqueues o.
func (p *KafkaPublisher) Publish(ctx context.Context, o Outcome) error {
	if o.EventID == "" {
		o.EventID = uuid.NewString()
	}
	if o.Type == "" {
		o.Type = TypeReceiptProcessed
	}
	if o.RequestID == "" {
		o.RequestID = requestcontext.RequestID(ctx)
	}
	if o.OccurredAt.IsZero() {
		o.OccurredAt = requestcontext.Now(ctx)
	}

	if p.inbox == nil {
		return p.send(ctx, o)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(ctx, o, "closed")
		return ErrDropped
	}
	select {
	case p.inbox <- o:
		return nil
	default:
		p.drop(ctx, o, "buffer_full")
		return ErrDropped
	}
}

func (p *KafkaPublisher) run() {
	defer p.wg.Done()
	for o := range p.inbox {
		_ = p.send(context.Background(), o)
	}
}

func (p *KafkaPublisher) send(ctx context.Context, o Outcome) error {
	if !p.breaker.Allow() {
		p.drop(ctx, o, "circuit_open")
		return ErrDropped
	}
	value, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	headers := map[string]string{"type": o.Type, "event-id": o.EventID}
	if err := p.producer.Produce(ctx, []byte(o.RegistrationID), value, headers); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.Warn("event publishing circuit opened", "breaker", p.breaker.Name())
		}
		p.logger.ErrorContext(ctx, "publish receipt outcome failed",
			"registration_id", o.RegistrationID, "event_id", o.EventID, "error", err)
		return fmt.Errorf("publish outcome: %w", err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.Info("event publishing circuit closed", "breaker", p.breaker.Name())
	}
	return nil
}

func (p *KafkaPublisher) drop(ctx context.Context, o Outcome, reason string) {
	p.logger.WarnContext(ctx, "receipt outcome dropped",
		"registration_id", o.RegistrationID, "event_id", o.EventID, "reason", reason)
	if p.onDrop != nil {
		p.onDrop(reason)
	}
}

// Close drains queued outcomes. The producer is owned by the caller.
func (p *KafkaPublisher) Close() {
	p.mu.Lock()
	if p.closed || p.inbox == nil {
		p.closed = true
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	p.wg.Wait()
}
