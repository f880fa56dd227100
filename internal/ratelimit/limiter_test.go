package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiterStartsFull(t *testing.T) {
	rl := NewRateLimiter(1.0, 10)
	if tokens := rl.GetCurrentTokens(); tokens < 9.9 {
		t.Errorf("expected ~10 tokens, got %.2f", tokens)
	}
}

func TestAllowConsumesBurst(t *testing.T) {
	rl := NewRateLimiter(0.5, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Fatalf("Allow() failed on attempt %d", i+1)
		}
	}
	if rl.Allow() {
		t.Error("Allow() should fail when the bucket is empty")
	}
}

func TestWaitWithinBurstDoesNotBlock(t *testing.T) {
	rl := NewRateLimiter(1.0, 5)
	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("burst waits took %v", elapsed)
	}
}

func TestWaitRefills(t *testing.T) {
	rl := NewRateLimiter(20.0, 1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("second wait returned after %v, expected ~50ms", elapsed)
	}
}

func TestWaitContextCancelled(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want deadline exceeded", err)
	}
}

func TestZeroRateDisablesThrottling(t *testing.T) {
	rl := NewRateLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatalf("unlimited limiter refused request %d", i)
		}
	}
}
