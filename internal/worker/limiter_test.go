package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 1 {
		t.Errorf("expected default burst 1 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "http://google.com"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_SubdomainsShareBucket(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !limiter.Allow("https://www.news24.com/a") {
		t.Fatal("expected first request to be allowed")
	}
	if limiter.Allow("https://m.news24.com/b") {
		t.Error("expected subdomain to share the exhausted bucket")
	}
	if !limiter.Allow("https://www.iol.co.za/c") {
		t.Error("expected other site to be allowed")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("https://example.com") {
			t.Fatalf("expected unlimited limiter to allow request %d", i)
		}
	}
}

func TestLimiter_SetSiteRate(t *testing.T) {
	limiter := NewLimiter(100, 10)
	limiter.SetSiteRate("slow", 1, 1)

	if !limiter.Allow("https://www.slow.com/1") {
		t.Fatal("expected first request to slow site to be allowed")
	}
	if limiter.Allow("https://www.slow.com/2") {
		t.Error("expected slow site to be throttled")
	}
}

func TestLimiter_NilWait(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Wait(context.Background(), "https://example.com"); err != nil {
		t.Errorf("expected nil limiter to be a no-op, got %v", err)
	}
}

func TestSleep_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expected Sleep to return immediately on canceled context")
	}
}

func TestSleep_Elapses(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("expected Sleep to wait")
	}
}

func TestBetween(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := Between(time.Second, 3*time.Second)
		if d < time.Second || d > 3*time.Second {
			t.Fatalf("Between out of range: %v", d)
		}
	}
	if Between(2*time.Second, time.Second) != 2*time.Second {
		t.Error("expected lo when hi <= lo")
	}
}
