package app

import (
	"context"
	"testing"
	"time"
)

func TestRedisRateLimiter_WindowKey(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, " lease:limits: ")
	now := time.Date(2025, 3, 1, 10, 0, 45, 0, time.UTC)

	key, remaining := limiter.windowKey(guestCheckoutScope, "contract-1", time.Minute, now)
	want := "lease:limits:guest_checkout:contract-1:" + "1740823200"
	if key != want {
		t.Fatalf("expected key %q, got %q", want, key)
	}
	if remaining != 15*time.Second {
		t.Fatalf("expected 15s left in the window, got %s", remaining)
	}

	next, _ := limiter.windowKey(guestCheckoutScope, "contract-1", time.Minute, now.Add(15*time.Second))
	if next == key {
		t.Fatal("expected a new window to use a new key")
	}
}

func TestRedisRateLimiter_DefaultPrefix(t *testing.T) {
	if got := NewRedisRateLimiter(nil, "  ").prefix; got != defaultRateLimitPrefix {
		t.Fatalf("expected default prefix, got %q", got)
	}
}

func TestRedisRateLimiter_WithoutClientAllows(t *testing.T) {
	limiter := NewRedisRateLimiter(nil, "")
	count, retryAfter, err := limiter.ConsumeRateLimit(context.Background(), guestCheckoutScope, "contract-1", 10, time.Minute)
	if err != nil || count != 0 || retryAfter != 0 {
		t.Fatalf("expected a no-op, got %d, %d, %v", count, retryAfter, err)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := map[time.Duration]int{
		0:                       1,
		400 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	}
	for in, want := range tests {
		if got := retryAfterSeconds(in); got != want {
			t.Fatalf("retryAfterSeconds(%s) = %d, want %d", in, got, want)
		}
	}
}
