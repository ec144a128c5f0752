package core

import (
	"context"
	"errors"
	"time"
)

// RetryConfig acota el retry con backoff exponencial que aplican los backends
// sobre lecturas y escrituras por igual.
type RetryConfig struct {
	MaxRetries int           // reintentos además del intento inicial
	BaseDelay  time.Duration // delay del primer reintento
	MaxDelay   time.Duration // techo del backoff
}

// DefaultRetry: 3 reintentos, 100ms base, 2s techo.
func DefaultRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: 2 * time.Second}
}

// terminal: errores que no tiene sentido reintentar.
func terminal(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalid) ||
		errors.Is(err, ErrReadOnly) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// WithRetry ejecuta fn con backoff exponencial acotado. Respeta la
// cancelación del contexto entre intentos.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxRetries <= 0 {
		return fn()
	}
	delay := cfg.BaseDelay
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || terminal(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
