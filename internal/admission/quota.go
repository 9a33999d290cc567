package admission

import (
	"sync"
	"time"
)

// Quota is a fixed-window request counter keyed by caller IP. The maximum is
// read through a func so the settings provider can change it at runtime
// without touching the quota.
type Quota struct {
	name   string
	window time.Duration
	max    func() int
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*quotaBucket
}

type quotaBucket struct {
	count       int
	windowStart time.Time
}

// QuotaResult carries the decision plus the values rendered into the
// RateLimit-* response headers.
type QuotaResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type QuotaOption func(*Quota)

// WithQuotaClock replaces the wall clock, for tests.
func WithQuotaClock(now func() time.Time) QuotaOption {
	return func(q *Quota) {
		q.now = now
	}
}

func NewQuota(name string, window time.Duration, max func() int, opts ...QuotaOption) *Quota {
	q := &Quota{
		name:    name,
		window:  window,
		max:     max,
		now:     time.Now,
		buckets: make(map[string]*quotaBucket),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Allow counts one request for key and reports whether it fits the window.
func (q *Quota) Allow(key string) QuotaResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.bucket(key)
	b.count++

	return q.result(b, b.count <= q.max())
}

// Peek reports whether another request for key would fit the window, without
// counting it. Used by quotas that only count failures after the fact.
func (q *Quota) Peek(key string) QuotaResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	b := q.bucket(key)

	return q.result(b, b.count < q.max())
}

// Record counts one request for key without deciding anything.
func (q *Quota) Record(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.bucket(key).count++
}

// bucket returns the live window bucket for key, resetting an elapsed one.
// Callers must hold q.mu.
func (q *Quota) bucket(key string) *quotaBucket {
	now := q.now()

	b, ok := q.buckets[key]
	if !ok || now.Sub(b.windowStart) >= q.window {
		b = &quotaBucket{windowStart: now}
		q.buckets[key] = b
	}

	return b
}

func (q *Quota) result(b *quotaBucket, allowed bool) QuotaResult {
	limit := q.max()

	remaining := limit - b.count
	if remaining < 0 {
		remaining = 0
	}

	return QuotaResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   b.windowStart.Add(q.window),
	}
}

// Sweep evicts buckets whose window has elapsed. Run on a background schedule.
func (q *Quota) Sweep() {
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()

	for key, b := range q.buckets {
		if now.Sub(b.windowStart) >= q.window {
			delete(q.buckets, key)
		}
	}
}
