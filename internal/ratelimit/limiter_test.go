package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiter(t *testing.T) {
	limiter := NewLimiter("http", 60) // 1 per second, burst 5

	if limiter.Name() != "http" {
		t.Errorf("Expected name 'http', got '%s'", limiter.Name())
	}

	for i := 0; i < 3; i++ {
		if !limiter.Allow() {
			t.Errorf("Request %d should have been allowed", i)
		}
	}
}

func TestUnlimited(t *testing.T) {
	limiter := NewLimiter("csv", 0)
	for i := 0; i < 100; i++ {
		if !limiter.Allow() {
			t.Fatalf("Request %d should have been allowed without a limit", i)
		}
	}
}

func TestLimiterWait(t *testing.T) {
	limiter := NewLimiter("http", 120)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Wait took too long")
	}
}

func TestThrottledPause(t *testing.T) {
	limiter := NewLimiter("http", 600)
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Throttled()
	first := limiter.Paused()
	if first != initialPause {
		t.Errorf("Expected pause %v, got %v", initialPause, first)
	}
	if limiter.Allow() {
		t.Error("Requests should be refused while paused")
	}

	limiter.Throttled()
	if second := limiter.Paused(); second != 2*initialPause {
		t.Errorf("Expected doubled pause %v, got %v", 2*initialPause, second)
	}

	now = now.Add(time.Minute)
	if limiter.Paused() != 0 {
		t.Error("Pause should have expired")
	}

	limiter.Succeeded()
	limiter.Throttled()
	if got := limiter.Paused(); got != initialPause {
		t.Errorf("Expected pause reset to %v, got %v", initialPause, got)
	}
}

func TestPauseCap(t *testing.T) {
	limiter := NewLimiter("http", 60)
	for i := 0; i < 20; i++ {
		limiter.Throttled()
	}
	if limiter.pause != maxPause {
		t.Errorf("Expected pause capped at %v, got %v", maxPause, limiter.pause)
	}
}

func TestLimiterContextCancellation(t *testing.T) {
	limiter := NewLimiter("http", 1)
	limiter.Throttled()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Error("Expected error from cancelled context")
	}
}
