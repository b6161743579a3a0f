package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confreg/pkg/platform/circuit"
	"confreg/pkg/platform/sentinel"
)

type stubSource struct {
	calls   atomic.Int32
	partial Partial
	err     error
	gate    chan struct{}
}

func (s *stubSource) Fetch(ctx context.Context) (Partial, error) {
	s.calls.Add(1)
	if s.gate != nil {
		<-s.gate
	}
	return s.partial, s.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func boolPtr(b bool) *bool { return &b }

func TestOverlay(t *testing.T) {
	s := Defaults().Overlay(Partial{
		CompanyName: "Intelli Global",
		HeaderColor: " ",
		LogoWidth:   90,
		AttachPDF:   boolPtr(false),
	})
	assert.Equal(t, "Intelli Global", s.CompanyName)
	assert.Equal(t, DefaultHeaderColor, s.HeaderColor)
	assert.Equal(t, float64(90), s.LogoWidth)
	assert.Equal(t, float64(24), s.LogoHeight)
	assert.False(t, s.AttachPDF)
	assert.True(t, s.StorePDF)
}

func TestProviderCachesWithinTTL(t *testing.T) {
	src := &stubSource{partial: Partial{ConferenceTitle: "Nursing 2026"}}
	clk := &clock{t: time.Unix(0, 0)}
	p := NewProvider(src, Defaults(), WithTTL(time.Minute), WithClock(clk.now))

	assert.Equal(t, "Nursing 2026", p.Get(context.Background()).ConferenceTitle)
	assert.Equal(t, "Nursing 2026", p.Get(context.Background()).ConferenceTitle)
	assert.Equal(t, int32(1), src.calls.Load())

	clk.t = clk.t.Add(2 * time.Minute)
	p.Get(context.Background())
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestProviderFallsBackToDefaults(t *testing.T) {
	src := &stubSource{err: sentinel.ErrUnavailable}
	p := NewProvider(src, Defaults())

	s := p.Get(context.Background())
	assert.Equal(t, Defaults(), s)
}

func TestProviderPrefersLastGoodSettings(t *testing.T) {
	src := &stubSource{partial: Partial{CompanyName: "Cached Co"}}
	clk := &clock{t: time.Unix(0, 0)}
	p := NewProvider(src, Defaults(), WithTTL(time.Second), WithClock(clk.now))
	require.Equal(t, "Cached Co", p.Get(context.Background()).CompanyName)

	src.err = errors.New("cms down")
	clk.t = clk.t.Add(time.Hour)
	assert.Equal(t, "Cached Co", p.Get(context.Background()).CompanyName)
}

func TestProviderStopsCallingFailingSource(t *testing.T) {
	src := &stubSource{err: errors.New("cms down")}
	clk := &clock{t: time.Unix(0, 0)}
	breaker := circuit.New("cms-settings", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute), circuit.WithClock(clk.now))
	var states []bool
	p := NewProvider(src, Defaults(), WithBreaker(breaker), WithClock(clk.now),
		WithBreakerObserver(func(open bool) { states = append(states, open) }))

	for range 5 {
		p.Get(context.Background())
	}
	assert.Equal(t, int32(2), src.calls.Load())
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, []bool{true}, states)

	clk.t = clk.t.Add(2 * time.Minute)
	p.Get(context.Background())
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestProviderCollapsesConcurrentFetches(t *testing.T) {
	src := &stubSource{partial: Partial{CompanyName: "Once"}, gate: make(chan struct{})}
	p := NewProvider(src, Defaults())

	var wg sync.WaitGroup
	results := make([]Settings, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.Get(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, r := range results {
		assert.Equal(t, "Once", r.CompanyName)
	}
}

func TestNilSourceReturnsDefaults(t *testing.T) {
	p := NewProvider(nil, Defaults())
	assert.Equal(t, Defaults(), p.Get(context.Background()))
}
