// Package ratelimit caps how many messages campaign submissions may hand to
// the sender per hour and per day, globally and per actor. Counters live in
// memory and are flushed to BoltDB so quotas survive restarts.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketRateLimits = []byte("submission_quotas")

// Level is the scope a quota applies to
type Level string

const (
	LevelGlobal Level = "global"
	LevelActor  Level = "actor"
)

// Config contains quota configuration
type Config struct {
	Global *LimitConfig `yaml:"global,omitempty"`
	// Actor applies to each actor separately
	Actor *LimitConfig `yaml:"actor,omitempty"`

	FlushInterval time.Duration `yaml:"flush_interval,omitempty"`
}

// LimitConfig contains quota values; zero means unlimited
type LimitConfig struct {
	MessagesPerHour int `yaml:"messages_per_hour" json:"messages_per_hour"`
	MessagesPerDay  int `yaml:"messages_per_day" json:"messages_per_day"`
}

// Counter tracks messages in the current windows
type Counter struct {
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Limiter enforces message quotas
type Limiter struct {
	db       *bolt.DB
	config   *Config
	counters map[string]*Counter
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewLimiter creates a limiter and starts background persistence
func NewLimiter(db *bolt.DB, cfg *Config) (*Limiter, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRateLimits)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quota bucket: %w", err)
	}

	l := &Limiter{
		db:       db,
		config:   cfg,
		counters: make(map[string]*Counter),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}

	if err := l.loadCounters(); err != nil {
		return nil, fmt.Errorf("failed to load counters: %w", err)
	}

	go l.persistLoop()

	return l, nil
}

// Request describes a submission about to hand Messages to the sender
type Request struct {
	Actor    string
	Messages int
}

// Result contains the quota check result
type Result struct {
	Allowed    bool          `json:"allowed"`
	DeniedBy   Level         `json:"denied_by,omitempty"`
	DeniedKey  string        `json:"denied_key,omitempty"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Stats contains quota usage for one key
type Stats struct {
	Level       Level     `json:"level"`
	Key         string    `json:"key"`
	HourlyCount int       `json:"hourly_count"`
	DailyCount  int       `json:"daily_count"`
	HourStart   time.Time `json:"hour_start"`
	DayStart    time.Time `json:"day_start"`
}

// Allow reserves req.Messages against every applicable quota. Either all
// counters are charged or none are.
func (l *Limiter) Allow(ctx context.Context, req *Request) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	checks := l.getChecks(req)

	for _, check := range checks {
		l.resetExpiredCounters(l.getOrCreateCounter(check.key, now), now)
	}

	result := l.evaluate(checks, req.Messages, now, l.counters)
	if !result.Allowed {
		return result, nil
	}

	for _, check := range checks {
		counter := l.counters[check.key]
		counter.HourlyCount += req.Messages
		counter.DailyCount += req.Messages
	}

	return result, nil
}

// Release gives back messages charged by Allow when the hand-off did not
// happen. Counts never drop below zero, so a release after a window reset
// only trims the new window.
func (l *Limiter) Release(ctx context.Context, req *Request) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, check := range l.getChecks(req) {
		counter, ok := l.counters[check.key]
		if !ok {
			continue
		}
		l.resetExpiredCounters(counter, now)
		counter.HourlyCount = max(counter.HourlyCount-req.Messages, 0)
		counter.DailyCount = max(counter.DailyCount-req.Messages, 0)
	}

	return nil
}

// Check reports whether req would be allowed without charging counters
func (l *Limiter) Check(ctx context.Context, req *Request) (*Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.now()
	checks := l.getChecks(req)

	current := make(map[string]*Counter, len(checks))
	for _, check := range checks {
		if counter, ok := l.counters[check.key]; ok {
			c := *counter
			l.resetExpiredCounters(&c, now)
			current[check.key] = &c
		}
	}

	return l.evaluate(checks, req.Messages, now, current), nil
}

func (l *Limiter) evaluate(checks []limitCheck, n int, now time.Time, counters map[string]*Counter) *Result {
	result := &Result{Allowed: true, Remaining: -1}

	for _, check := range checks {
		counter := counters[check.key]
		if counter == nil {
			counter = &Counter{HourStart: now, DayStart: now}
		}

		if limit := check.limit.MessagesPerHour; limit > 0 {
			if counter.HourlyCount+n > limit {
				return denied(check, limit-counter.HourlyCount, counter.HourStart.Add(time.Hour).Sub(now))
			}
			result.Remaining = minRemaining(result.Remaining, limit-counter.HourlyCount-n)
		}
		if limit := check.limit.MessagesPerDay; limit > 0 {
			if counter.DailyCount+n > limit {
				return denied(check, limit-counter.DailyCount, counter.DayStart.Add(24*time.Hour).Sub(now))
			}
			result.Remaining = minRemaining(result.Remaining, limit-counter.DailyCount-n)
		}
	}

	return result
}

func denied(check limitCheck, remaining int, retry time.Duration) *Result {
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:    false,
		DeniedBy:   check.level,
		DeniedKey:  check.key,
		Remaining:  remaining,
		RetryAfter: retry,
	}
}

// minRemaining treats -1 as unlimited
func minRemaining(cur, v int) int {
	if cur < 0 || v < cur {
		return v
	}
	return cur
}

// GetStats returns current usage for a key
func (l *Limiter) GetStats(ctx context.Context, level Level, key string) (*Stats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{Level: level, Key: key}

	counter, exists := l.counters[makeKey(level, key)]
	if !exists {
		return stats, nil
	}

	c := *counter
	l.resetExpiredCounters(&c, l.now())
	stats.HourlyCount = c.HourlyCount
	stats.DailyCount = c.DailyCount
	stats.HourStart = c.HourStart
	stats.DayStart = c.DayStart
	return stats, nil
}

// Stop stops background persistence and flushes counters
func (l *Limiter) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	return l.persistCounters()
}

type limitCheck struct {
	level Level
	key   string
	limit *LimitConfig
}

func (l *Limiter) getChecks(req *Request) []limitCheck {
	var checks []limitCheck

	if l.config.Global != nil {
		checks = append(checks, limitCheck{
			level: LevelGlobal,
			key:   makeKey(LevelGlobal, "global"),
			limit: l.config.Global,
		})
	}

	if req.Actor != "" && l.config.Actor != nil {
		checks = append(checks, limitCheck{
			level: LevelActor,
			key:   makeKey(LevelActor, req.Actor),
			limit: l.config.Actor,
		})
	}

	return checks
}

func (l *Limiter) getOrCreateCounter(key string, now time.Time) *Counter {
	counter, exists := l.counters[key]
	if !exists {
		counter = &Counter{HourStart: now, DayStart: now}
		l.counters[key] = counter
	}
	return counter
}

func (l *Limiter) resetExpiredCounters(counter *Counter, now time.Time) {
	if now.Sub(counter.HourStart) >= time.Hour {
		counter.HourlyCount = 0
		counter.HourStart = now
	}
	if now.Sub(counter.DayStart) >= 24*time.Hour {
		counter.DailyCount = 0
		counter.DayStart = now
	}
}

func (l *Limiter) loadCounters() error {
	return l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var counter Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return nil
			}
			l.counters[string(k)] = &counter
			return nil
		})
	})
}

func (l *Limiter) persistCounters() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRateLimits)
		if bucket == nil {
			return nil
		}

		for key, counter := range l.counters {
			data, err := json.Marshal(counter)
			if err != nil {
				continue
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) persistLoop() {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.persistCounters()
		}
	}
}

func makeKey(level Level, key string) string {
	return string(level) + ":" + key
}
