// Package admission implements the edge-protection layer: per-IP reputation
// tracking with automatic banning, per-route request quotas, and the HTTP
// middleware that applies them before any handler runs.
package admission

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/snaplink/snaplink/internal/models"
)

// Decision is the outcome of observing a request from an IP.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionBlock Decision = "block"
)

// trackingWindow is the sliding window the per-IP request counter resets on.
const trackingWindow = time.Minute

// BlockEntry describes a banned IP. A zero ExpiresAt means the ban is manual
// and stays until explicitly lifted.
type BlockEntry struct {
	IP        string    `json:"ip"`
	Reason    string    `json:"reason,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ReputationTracker keeps a sliding-window request counter per caller IP and
// promotes an IP to the blocked set when its rate exceeds the suspicious
// threshold. The blocked set lives in a go-cache instance whose per-entry TTL
// removes automatic bans at expiry; expiry is also re-checked against the
// injected clock so tests can drive virtual time.
type ReputationTracker struct {
	settings func() models.RateLimitSettings
	now      func() time.Time

	mu       sync.Mutex
	counters map[string]*ipCounter
	blocked  *gocache.Cache
}

type ipCounter struct {
	count       int
	windowStart time.Time
	lastSeen    time.Time
}

type TrackerOption func(*ReputationTracker)

// WithTrackerClock replaces the wall clock, for tests.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *ReputationTracker) {
		t.now = now
	}
}

func NewReputationTracker(settings func() models.RateLimitSettings, opts ...TrackerOption) *ReputationTracker {
	t := &ReputationTracker{
		settings: settings,
		now:      time.Now,
		counters: make(map[string]*ipCounter),
		blocked:  gocache.New(gocache.NoExpiration, time.Minute),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Observe records one request from ip and decides whether to admit it.
// A blocked IP is rejected without touching its counter. The request that
// crosses the threshold is itself rejected.
func (t *ReputationTracker) Observe(ip string) Decision {
	now := t.now()

	if _, ok := t.lookupBlocked(ip, now); ok {
		return DecisionBlock
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.counters[ip]
	if !ok || now.Sub(c.windowStart) > trackingWindow {
		t.counters[ip] = &ipCounter{count: 1, windowStart: now, lastSeen: now}
		return DecisionAllow
	}

	c.count++
	c.lastSeen = now

	cfg := t.settings()
	if c.count > cfg.SuspiciousThreshold {
		delete(t.counters, ip)

		duration := cfg.BlockDuration()
		t.blocked.Set(ip, BlockEntry{
			IP:        ip,
			Reason:    "request rate exceeded suspicious threshold",
			BlockedAt: now,
			ExpiresAt: now.Add(duration),
		}, duration)

		return DecisionBlock
	}

	return DecisionAllow
}

// Block bans an IP until Unblock is called. Idempotent.
func (t *ReputationTracker) Block(ip, reason string) {
	t.blocked.Set(ip, BlockEntry{
		IP:        ip,
		Reason:    reason,
		BlockedAt: t.now(),
	}, gocache.NoExpiration)
}

// Unblock lifts a ban, manual or automatic. Idempotent.
func (t *ReputationTracker) Unblock(ip string) {
	t.blocked.Delete(ip)
}

// Blocked returns the active block entry for ip, if any.
func (t *ReputationTracker) Blocked(ip string) (BlockEntry, bool) {
	return t.lookupBlocked(ip, t.now())
}

func (t *ReputationTracker) lookupBlocked(ip string, now time.Time) (BlockEntry, bool) {
	v, ok := t.blocked.Get(ip)
	if !ok {
		return BlockEntry{}, false
	}

	entry := v.(BlockEntry)
	if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
		t.blocked.Delete(ip)
		return BlockEntry{}, false
	}

	return entry, true
}

// SweepIdle evicts counters that have not been seen within the tracking
// window. Run on a background schedule to bound memory.
func (t *ReputationTracker) SweepIdle() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for ip, c := range t.counters {
		if now.Sub(c.lastSeen) > trackingWindow {
			delete(t.counters, ip)
		}
	}
}
