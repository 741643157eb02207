package ratelimit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func setupTestDB(t *testing.T) *bolt.DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "test.db"), 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLimiter(t *testing.T, db *bolt.DB, cfg *Config, now *time.Time) *Limiter {
	t.Helper()

	limiter, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	if now != nil {
		limiter.now = func() time.Time { return *now }
	}
	t.Cleanup(func() { limiter.Stop() })
	return limiter
}

func TestNewLimiterDefaultConfig(t *testing.T) {
	limiter := newTestLimiter(t, setupTestDB(t), nil, nil)

	if limiter.config.FlushInterval != 10*time.Second {
		t.Errorf("expected default FlushInterval=10s, got %v", limiter.config.FlushInterval)
	}

	res, err := limiter.Allow(context.Background(), &Request{Actor: "ann", Messages: 1_000_000})
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !res.Allowed {
		t.Error("expected no quota to allow everything")
	}
	if res.Remaining != -1 {
		t.Errorf("expected unlimited remaining (-1), got %d", res.Remaining)
	}
}

func TestAllowCountsMessages(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		Global: &LimitConfig{MessagesPerHour: 10},
	}, &now)
	ctx := context.Background()

	tests := []struct {
		messages      int
		wantAllowed   bool
		wantRemaining int
	}{
		{4, true, 6},
		{6, true, 0},
		{1, false, 0},
	}

	for i, tt := range tests {
		res, err := limiter.Allow(ctx, &Request{Actor: "ann", Messages: tt.messages})
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if res.Allowed != tt.wantAllowed {
			t.Errorf("call %d: Allowed = %v, want %v", i, res.Allowed, tt.wantAllowed)
		}
		if res.Remaining != tt.wantRemaining {
			t.Errorf("call %d: Remaining = %d, want %d", i, res.Remaining, tt.wantRemaining)
		}
	}
}

func TestAllowDeniedDoesNotCharge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		Global: &LimitConfig{MessagesPerDay: 100},
		Actor:  &LimitConfig{MessagesPerHour: 5},
	}, &now)
	ctx := context.Background()

	res, _ := limiter.Allow(ctx, &Request{Actor: "ann", Messages: 8})
	if res.Allowed {
		t.Fatal("expected actor quota to deny")
	}
	if res.DeniedBy != LevelActor {
		t.Errorf("DeniedBy = %s, want actor", res.DeniedBy)
	}
	if res.RetryAfter != time.Hour {
		t.Errorf("RetryAfter = %v, want 1h", res.RetryAfter)
	}

	stats, _ := limiter.GetStats(ctx, LevelGlobal, "global")
	if stats.DailyCount != 0 {
		t.Errorf("global DailyCount = %d, want 0 after a denied request", stats.DailyCount)
	}

	// A different actor has its own hourly quota
	res, _ = limiter.Allow(ctx, &Request{Actor: "bob", Messages: 5})
	if !res.Allowed {
		t.Error("expected bob to be allowed")
	}
}

func TestWindowReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		Actor: &LimitConfig{MessagesPerHour: 3, MessagesPerDay: 5},
	}, &now)
	ctx := context.Background()
	req := &Request{Actor: "ann", Messages: 3}

	if res, _ := limiter.Allow(ctx, req); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res, _ := limiter.Allow(ctx, req); res.Allowed {
		t.Fatal("second request in the same hour should be denied")
	}

	now = now.Add(time.Hour)
	res, _ := limiter.Allow(ctx, req)
	if res.Allowed {
		t.Fatal("daily quota should deny after the hourly reset")
	}
	if res.Remaining != 2 {
		t.Errorf("Remaining = %d, want 2", res.Remaining)
	}

	now = now.Add(24 * time.Hour)
	if res, _ := limiter.Allow(ctx, req); !res.Allowed {
		t.Error("request after the daily reset should be allowed")
	}
}

func TestCheckDoesNotCharge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		Global: &LimitConfig{MessagesPerHour: 2},
	}, &now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := limiter.Check(ctx, &Request{Messages: 2})
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !res.Allowed {
			t.Fatalf("Check %d denied", i)
		}
	}

	if res, _ := limiter.Check(ctx, &Request{Messages: 3}); res.Allowed {
		t.Error("expected Check to deny more than the quota")
	}
}

func TestReleaseRefundsCharge(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, setupTestDB(t), &Config{
		Global: &LimitConfig{MessagesPerHour: 5},
		Actor:  &LimitConfig{MessagesPerDay: 5},
	}, &now)
	ctx := context.Background()
	req := &Request{Actor: "ann", Messages: 4}

	if res, err := limiter.Allow(ctx, req); err != nil || !res.Allowed {
		t.Fatalf("Allow() = %+v, %v", res, err)
	}
	if err := limiter.Release(ctx, req); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	for _, lvl := range []struct {
		level Level
		key   string
	}{{LevelGlobal, "global"}, {LevelActor, "ann"}} {
		stats, err := limiter.GetStats(ctx, lvl.level, lvl.key)
		if err != nil {
			t.Fatalf("GetStats(%s) error = %v", lvl.level, err)
		}
		if stats.HourlyCount != 0 || stats.DailyCount != 0 {
			t.Errorf("%s counts = %d/%d, want 0/0", lvl.level, stats.HourlyCount, stats.DailyCount)
		}
	}

	// refunded capacity is usable again
	if res, _ := limiter.Allow(ctx, &Request{Actor: "ann", Messages: 5}); !res.Allowed {
		t.Error("expected full quota after release")
	}

	// releasing more than was charged stops at zero
	if err := limiter.Release(ctx, &Request{Actor: "ann", Messages: 50}); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	stats, _ := limiter.GetStats(ctx, LevelActor, "ann")
	if stats.DailyCount != 0 {
		t.Errorf("DailyCount = %d, want 0", stats.DailyCount)
	}
}

func TestPersistence(t *testing.T) {
	db := setupTestDB(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := &Config{Actor: &LimitConfig{MessagesPerDay: 10}}

	first, err := NewLimiter(db, cfg)
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	first.now = func() time.Time { return now }
	if _, err := first.Allow(context.Background(), &Request{Actor: "ann", Messages: 7}); err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if err := first.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	second := newTestLimiter(t, db, cfg, &now)
	stats, err := second.GetStats(context.Background(), LevelActor, "ann")
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.DailyCount != 7 {
		t.Errorf("DailyCount = %d, want 7 after reload", stats.DailyCount)
	}
}
