package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptStopsOnSuccess(t *testing.T) {
	var retried []int
	attempts, err := Attempt(context.Background(), Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond}, func(_ context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("flaky")
		}
		return nil
	}, func(attempt int, _ error, _ time.Duration) {
		retried = append(retried, attempt)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestAttemptIsBounded(t *testing.T) {
	boom := errors.New("boom")
	attempts, err := Attempt(context.Background(), Policy{MaxAttempts: 3}, func(context.Context, int) error {
		return boom
	}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestAttemptDefaultsToSingleTry(t *testing.T) {
	attempts, err := Attempt(context.Background(), Policy{}, func(context.Context, int) error {
		return errors.New("once")
	}, nil)
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPolicyBackoffGrows(t *testing.T) {
	b := Policy{MaxAttempts: 3, InitialBackoff: 10 * time.Millisecond, MaxBackoff: time.Second}.backOff()
	first := b.NextBackOff()
	second := b.NextBackOff()
	assert.Equal(t, 10*time.Millisecond, first)
	assert.Equal(t, 20*time.Millisecond, second)
}

func TestWithFallback(t *testing.T) {
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("fail") }

	degraded, err := WithFallback(context.Background(), ok, fail)
	assert.NoError(t, err)
	assert.False(t, degraded)

	degraded, err = WithFallback(context.Background(), fail, ok)
	assert.NoError(t, err)
	assert.True(t, degraded)

	degraded, err = WithFallback(context.Background(), fail, fail)
	assert.Error(t, err)
	assert.True(t, degraded)
}
