package notify

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy задает ограниченный повтор с растущей задержкой.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultPolicy возвращает три попытки с задержкой 2s и 4s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialBackoff: 2 * time.Second, MaxBackoff: 30 * time.Second}
}

func (p Policy) backOff() backoff.BackOff {
	if p.InitialBackoff <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxBackoff
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	return b
}

// Attempt выполняет action не более MaxAttempts раз. onRetry вызывается
// перед каждой повторной попыткой. Возвращает число выполненных попыток.
func Attempt(ctx context.Context, policy Policy, action func(ctx context.Context, attempt int) error, onRetry func(attempt int, err error, wait time.Duration)) (int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, action(ctx, attempts)
	},
		backoff.WithBackOff(policy.backOff()),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			if onRetry != nil {
				onRetry(attempts, err, wait)
			}
		}),
	)
	return attempts, err
}

// WithFallback выполняет primary, а при ошибке fallback. degraded сообщает,
// что результат получен через fallback.
func WithFallback(ctx context.Context, primary, fallback func(ctx context.Context) error) (degraded bool, err error) {
	primaryErr := primary(ctx)
	if primaryErr == nil {
		return false, nil
	}
	if fallback == nil {
		return false, primaryErr
	}
	if err := fallback(ctx); err != nil {
		return true, errors.Join(primaryErr, err)
	}
	return true, nil
}
