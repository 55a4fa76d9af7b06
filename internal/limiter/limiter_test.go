package limiter

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterSerializes(t *testing.T) {
	rl := New(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("expected at least 20ms between acquires, got %v", elapsed)
	}
}

func TestRateLimiterRespectsCancellation(t *testing.T) {
	rl := New(time.Hour)
	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(cctx); err == nil {
		t.Error("expected context deadline error")
	}
}

func TestNilAdvisoryIsNoop(t *testing.T) {
	var a *Advisory
	ctx := context.Background()
	if a.IsLeased(ctx, 1, 2, "DuProcess") {
		t.Error("nil advisory should never report leased")
	}
	a.MarkLeased(ctx, 1, 2, "DuProcess", time.Minute)
	if a.IsCoolingDown(ctx, "Mid") {
		t.Error("nil advisory should never report cooling down")
	}
	a.OpenCooldown(ctx, "Mid")
	a.CloseCooldown(ctx, "Mid")
	if err := a.Close(); err != nil {
		t.Errorf("nil advisory Close() should be a no-op, got %v", err)
	}
}
