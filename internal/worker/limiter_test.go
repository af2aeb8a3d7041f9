package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/srs/internal/model"
)

func TestNewLimiter(t *testing.T) {
	l := NewLimiter(10, 5)
	if l.burst != 5 {
		t.Errorf("expected burst 5, got %d", l.burst)
	}
	if NewLimiter(10, -1).burst != 1 {
		t.Error("expected burst 1 for negative input")
	}

	unlimited := NewLimiterFromConfig(model.RateLimitConfig{})
	for i := 0; i < 100; i++ {
		if !unlimited.Allow("https://example.com/") {
			t.Fatalf("zero rate should be unlimited, denied at %d", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(100, 1)
	ctx := context.Background()

	if err := l.Wait(ctx, "http://example.com/foo"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := l.Wait(ctx, "http://other.example/"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := l.Wait(ctx, "not a url"); err == nil {
		t.Error("expected error for URL without host")
	}
}

func TestLimiter_Cancelled(t *testing.T) {
	l := NewLimiter(0.01, 1)
	l.Allow("http://slow.example/")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "http://slow.example/next"); err == nil {
		t.Error("expected wait to fail once the context expires")
	}
}

func TestLimiter_PerHost(t *testing.T) {
	l := NewLimiter(1, 1)
	if !l.Allow("http://example.com/a") {
		t.Fatal("first request should pass")
	}
	if l.Allow("http://example.com/b") {
		t.Error("second request to the same host should be limited")
	}
	if !l.Allow("http://other.com/") {
		t.Error("other host should have its own budget")
	}
}

func TestLimiter_SetHostRate(t *testing.T) {
	l := NewLimiter(10, 10)
	l.SetHostRate("slow.com", 0.1, 1)

	if !l.Allow("http://slow.com/") {
		t.Error("first request should pass")
	}
	if l.Allow("http://slow.com/") {
		t.Error("second request should fail")
	}
	if !l.Allow("http://fast.com/") {
		t.Error("other host should pass")
	}
}

func TestHostOf(t *testing.T) {
	host, err := hostOf("http://example.com:8080/foo")
	if err != nil {
		t.Fatalf("hostOf failed: %v", err)
	}
	if host != "example.com:8080" {
		t.Errorf("expected example.com:8080, got %s", host)
	}
	if _, err := hostOf("::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
}
