package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func TestDo_StopsAtMaxAttemptsWithLinearBackoff(t *testing.T) {
	var waits []time.Duration
	calls := 0
	errLag := errors.New("not visible yet")

	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Delay:       Linear(time.Second),
		Sleep:       recordingSleep(&waits),
	}, func(context.Context, int) error {
		calls++
		return errLag
	})

	require.ErrorIs(t, err, errLag)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
}

func TestDo_ReturnsOnFirstSuccess(t *testing.T) {
	var waits []time.Duration
	err := Do(context.Background(), Policy{
		MaxAttempts: 3,
		Delay:       Linear(time.Second),
		Sleep:       recordingSleep(&waits),
	}, func(_ context.Context, attempt int) error {
		if attempt < 2 {
			return errors.New("lagging")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, waits)
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	errFatal := errors.New("unauthorized")

	err := Do(context.Background(), Policy{MaxAttempts: 5, Delay: Constant(time.Millisecond)},
		func(context.Context, int) error {
			calls++
			return Permanent(errFatal)
		})

	assert.Equal(t, errFatal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{MaxAttempts: 3, Delay: Constant(time.Hour)}, func(context.Context, int) error {
		calls++
		return errors.New("lagging")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), Policy{}, func(context.Context, int) error {
		calls++
		return errors.New("x")
	})
	assert.Equal(t, 1, calls)
}
