package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	})
	if result.LastError != nil {
		t.Fatalf("unexpected error: %v", result.LastError)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if result.LastError != nil {
		t.Fatalf("unexpected error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", result.Attempts)
	}
}

func TestRetry_MaxRetriesExceeded(t *testing.T) {
	result := Retry(context.Background(), fastConfig(), func() error {
		return errors.New("permanent")
	})
	if !errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Errorf("expected ErrMaxRetriesExceeded, got %v", result.LastError)
	}
	if result.Attempts != 4 { // initial + 3 retries
		t.Errorf("expected 4 attempts, got %d", result.Attempts)
	}
}

func TestRetry_RetryIfStopsEarly(t *testing.T) {
	fatal := errors.New("execution reverted")
	cfg := fastConfig()
	cfg.RetryIf = func(err error) bool { return !errors.Is(err, fatal) }

	calls := 0
	result := Retry(context.Background(), cfg, func() error {
		calls++
		return fatal
	})
	if calls != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", calls)
	}
	if !errors.Is(result.LastError, fatal) {
		t.Errorf("expected original error, got %v", result.LastError)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := fastConfig()
	cfg.BaseDelay = time.Hour // would block without cancellation

	result := Retry(ctx, cfg, func() error {
		return errors.New("transient")
	})
	if !errors.Is(result.LastError, ErrContextCanceled) {
		t.Errorf("expected ErrContextCanceled, got %v", result.LastError)
	}
}

func TestRetryWithValue(t *testing.T) {
	calls := 0
	val, result := RetryWithValue(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if result.LastError != nil {
		t.Fatalf("unexpected error: %v", result.LastError)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
}

func TestCalculateDelay_Caps(t *testing.T) {
	cfg := &RetryConfig{
		BaseDelay:  time.Second,
		MaxDelay:   2 * time.Second,
		Multiplier: 10,
	}
	if d := calculateDelay(cfg, 5); d > cfg.MaxDelay {
		t.Errorf("delay %v exceeds cap %v", d, cfg.MaxDelay)
	}
}
