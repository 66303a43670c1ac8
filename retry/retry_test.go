package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	for k := 0; k < 3; k++ {
		rec := &sleepRecorder{}
		calls := 0
		attempts, err := Do(context.Background(), Policy{Attempts: 3, Delay: 5 * time.Second, Sleep: rec.sleep}, "test",
			func(_ context.Context, attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				if calls <= k {
					return errors.New("flaky")
				}
				return nil
			})
		require.NoError(t, err)
		assert.Equal(t, k+1, attempts)
		assert.Equal(t, k+1, calls)
		assert.Len(t, rec.delays, k)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	calls := 0
	last := errors.New("still down")
	attempts, err := Do(context.Background(), Policy{Attempts: 3, Delay: 5 * time.Second, Sleep: rec.sleep}, "test",
		func(context.Context, int) error {
			calls++
			return last
		})
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
	// linear: every pause is the same fixed delay
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, rec.delays)
}

func TestDoStopsOnPermanent(t *testing.T) {
	rec := &sleepRecorder{}
	cause := errors.New("forbidden")
	calls := 0
	attempts, err := Do(context.Background(), Policy{Attempts: 5, Sleep: rec.sleep}, "test",
		func(context.Context, int) error {
			calls++
			return Permanent(cause)
		})
	assert.Equal(t, cause, err)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
}

func TestDoZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), Policy{}, "test", func(context.Context, int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDoInterruptedByContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := Do(ctx, Policy{Attempts: 3, Delay: time.Hour}, "test", func(context.Context, int) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(errors.New("x"))))
}

func TestDoInterruptedDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := Do(ctx, Policy{Attempts: 3, Delay: time.Minute, Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}, "test", func(context.Context, int) error {
		calls++
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}
