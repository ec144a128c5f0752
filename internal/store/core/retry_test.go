package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryEventualSuccess(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("transitorio")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("esperaba éxito al tercer intento: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d, esperaba 3", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	boom := errors.New("siempre falla")
	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("debe devolver el último error: %v", err)
	}
	// intento inicial + 2 reintentos
	if calls != 3 {
		t.Fatalf("calls=%d, esperaba 3", calls)
	}
}

func TestWithRetryTerminalErrorsNotRetried(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond}
	for _, sentinel := range []error{ErrNotFound, ErrConflict, ErrInvalid, ErrReadOnly} {
		calls := 0
		err := WithRetry(context.Background(), cfg, func() error {
			calls++
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("esperaba %v, got %v", sentinel, err)
		}
		if calls != 1 {
			t.Fatalf("%v es terminal: calls=%d", sentinel, calls)
		}
	}
}

func TestWithRetryRespectsContextCancel(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 10, BaseDelay: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, cfg, func() error { return errors.New("transitorio") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("esperaba context.Canceled, got %v", err)
	}
}
