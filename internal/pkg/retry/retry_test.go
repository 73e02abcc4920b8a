package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func fastConfig(maxRetries int) Config {
	return Config{MaxRetries: maxRetries, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), isTransient, nil, func(attempt int) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	var attempts []int
	var retried []int

	got, err := Do(context.Background(), fastConfig(3), isTransient,
		func(attempt int, err error, backoff time.Duration) {
			retried = append(retried, attempt)
			assert.ErrorIs(t, err, errTransient)
		},
		func(attempt int) (int, error) {
			attempts = append(attempts, attempt)
			if attempt < 2 {
				return 0, errTransient
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, []int{0, 1, 2}, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0

	_, err := Do(context.Background(), fastConfig(5), isTransient, nil, func(int) (int, error) {
		calls++
		return 0, fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.NotErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(2), isTransient, nil, func(int) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestDo_ZeroRetriesIsSingleAttempt(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(0), isTransient, nil, func(int) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Second}

	_, err := Do(ctx, cfg, isTransient, func(int, error, time.Duration) { cancel() }, func(int) (int, error) {
		return 0, errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
}
