// Package settings loads tenant branding for receipts from the CMS. Lookups
// are best effort: any failure yields the configured defaults.
package settings

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"confreg/pkg/platform/circuit"
)

// Settings is the branding and delivery configuration of one tenant.
type Settings struct {
	CompanyName     string
	ConferenceTitle string
	HeaderColor     string
	ContactEmail    string
	ContactPhone    string
	Website         string
	LogoURL         string
	LogoWidth       float64
	LogoHeight      float64
	FooterText      string
	SenderName      string
	SubjectLine     string
	AttachPDF       bool
	StorePDF        bool
}

// DefaultHeaderColor is the navy band used when the CMS has no color.
const DefaultHeaderColor = "#0F172A"

// Defaults returns the built-in branding. No secrets live here.
func Defaults() Settings {
	return Settings{
		CompanyName:     "Conference Registrations",
		ConferenceTitle: "Conference Registration",
		HeaderColor:     DefaultHeaderColor,
		LogoWidth:       72,
		LogoHeight:      24,
		AttachPDF:       true,
		StorePDF:        true,
	}
}

// Overlay returns s with every non-empty field of o applied. Boolean
// toggles are taken from o only when it says they were set.
func (s Settings) Overlay(o Partial) Settings {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&s.CompanyName, o.CompanyName)
	set(&s.ConferenceTitle, o.ConferenceTitle)
	set(&s.HeaderColor, o.HeaderColor)
	set(&s.ContactEmail, o.ContactEmail)
	set(&s.ContactPhone, o.ContactPhone)
	set(&s.Website, o.Website)
	set(&s.LogoURL, o.LogoURL)
	set(&s.FooterText, o.FooterText)
	set(&s.SenderName, o.SenderName)
	set(&s.SubjectLine, o.SubjectLine)
	if o.LogoWidth > 0 {
		s.LogoWidth = o.LogoWidth
	}
	if o.LogoHeight > 0 {
		s.LogoHeight = o.LogoHeight
	}
	if o.AttachPDF != nil {
		s.AttachPDF = *o.AttachPDF
	}
	if o.StorePDF != nil {
		s.StorePDF = *o.StorePDF
	}
	return s
}

// Partial is what a Source could find; zero values mean "not set".
type Partial struct {
	CompanyName     string
	ConferenceTitle string
	HeaderColor     string
	ContactEmail    string
	ContactPhone    string
	Website         string
	LogoURL         string
	LogoWidth       float64
	LogoHeight      float64
	FooterText      string
	SenderName      string
	SubjectLine     string
	AttachPDF       *bool
	StorePDF        *bool
}

// Source fetches tenant settings from their system of record.
type Source interface {
	Fetch(ctx context.Context) (Partial, error)
}

// Provider caches settings for a short TTL, collapses concurrent fetches and
// stops calling a failing source until the breaker cools down.
type Provider struct {
	source   Source
	defaults Settings
	breaker  *circuit.Breaker
	group    singleflight.Group
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
	onState  func(open bool)

	mu        sync.RWMutex
	cached    Settings
	fetchedAt time.Time
	hasCache  bool
}

// Option configures a Provider.
type Option func(*Provider)

func WithTTL(d time.Duration) Option {
	return func(p *Provider) { p.ttl = d }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Provider) { p.breaker = b }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithBreakerObserver is told when the breaker opens or closes.
func WithBreakerObserver(fn func(open bool)) Option {
	return func(p *Provider) { p.onState = fn }
}

// NewProvider wraps source. A nil source always yields defaults.
func NewProvider(source Source, defaults Settings, opts ...Option) *Provider {
	p := &Provider{
		source:   source,
		defaults: defaults,
		breaker:  circuit.New("cms-settings", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		ttl:      time.Minute,
		timeout:  5 * time.Second,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns current settings. It never fails.
func (p *Provider) Get(ctx context.Context) Settings {
	if p.source == nil {
		return p.defaults
	}
	if s, ok := p.fresh(); ok {
		return s
	}
	if !p.breaker.Allow() {
		return p.fallback()
	}

	v, _, _ := p.group.Do("settings", func() (any, error) {
		if s, ok := p.fresh(); ok {
			return s, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		partial, err := p.source.Fetch(fetchCtx)
		if err != nil {
			if _, change := p.breaker.RecordFailure(); change.Opened {
				p.logger.WarnContext(ctx, "settings circuit opened", "error", err)
				p.observe(true)
			} else {
				p.logger.WarnContext(ctx, "settings fetch failed, using fallback", "error", err)
			}
			return p.fallback(), nil
		}
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			p.observe(false)
		}

		s := p.defaults.Overlay(partial)
		p.mu.Lock()
		p.cached, p.fetchedAt, p.hasCache = s, p.now(), true
		p.mu.Unlock()
		return s, nil
	})
	return v.(Settings)
}

func (p *Provider) observe(open bool) {
	if p.onState != nil {
		p.onState(open)
	}
}

func (p *Provider) fresh() (Settings, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.hasCache && p.now().Sub(p.fetchedAt) < p.ttl {
		return p.cached, true
	}
	return Settings{}, false
}

// fallback prefers the last good settings over defaults.
func (p *Provider) fallback() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.hasCache {
		return p.cached
	}
	return p.defaults
}
