package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "probe", RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	sentinel := errors.New("refused")
	calls := 0
	err := Retry(context.Background(), "probe", RetryConfig{
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
	}, func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "probe", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(error) bool { return false },
	}, func(ctx context.Context) error {
		calls++
		return errors.New("bad url")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestWithTimeoutZeroPassesThrough(t *testing.T) {
	err := WithTimeout(context.Background(), 0, "submit", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestWithTimeoutDeadline(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "submit", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}.withDefaults()
	for attempt := 1; attempt <= 10; attempt++ {
		if d := cfg.backoff(attempt); d > cfg.MaxDelay || d <= 0 {
			t.Errorf("attempt %d: delay %v outside (0, %v]", attempt, d, cfg.MaxDelay)
		}
	}
}

func TestRetryAbortsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, "probe", RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}
