// Package ratelimit bounds login attempts per client key inside a fixed window.
package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultMaxAttempts   = 5
	DefaultWindow        = 15 * time.Minute
	DefaultSweepInterval = 30 * time.Minute

	unknownKey = "unknown"
)

// Result is the outcome of one CheckAndConsume call.
type Result struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter is a process-wide attempt counter. It is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

type Option func(*Limiter)

func WithMaxAttempts(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithClock replaces time.Now; tests use it to move across window boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:     make(map[string]*entry),
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndConsume records one attempt for key and reports whether it may proceed.
// A blocked attempt does not increment the counter.
func (l *Limiter) CheckAndConsume(key string) Result {
	if key == "" {
		key = unknownKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return Result{Allowed: true, Remaining: l.maxAttempts - 1}
	}

	if e.count >= l.maxAttempts {
		return Result{Allowed: false, Remaining: 0}
	}

	e.count++
	return Result{Allowed: true, Remaining: l.maxAttempts - e.count}
}

// Reset forgets key entirely so the next attempt opens a fresh window.
func (l *Limiter) Reset(key string) {
	if key == "" {
		key = unknownKey
	}

	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
}

// Sweep drops every expired entry and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Limiter) MaxAttempts() int { return l.maxAttempts }

func (l *Limiter) Window() time.Duration { return l.window }
