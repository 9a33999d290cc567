// Package settings serves the live rate-limit configuration. The current
// value is an immutable snapshot behind an atomic pointer, swapped wholesale
// on reload rather than mutated field-by-field.
package settings

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/snaplink/snaplink/internal/models"
)

// Store fetches the persisted settings row.
type Store interface {
	Fetch(ctx context.Context) (models.RateLimitSettings, error)
}

// Provider caches the latest settings snapshot and notifies observers when a
// reload picks up a new version. A failed fetch never surfaces to callers:
// the previous snapshot (or the hard-coded defaults) stays in force.
type Provider struct {
	store  Store
	logger *slog.Logger
	cur    atomic.Pointer[models.RateLimitSettings]

	mu        sync.Mutex
	observers []func(models.RateLimitSettings)
}

func NewProvider(store Store, logger *slog.Logger) *Provider {
	p := &Provider{
		store:  store,
		logger: logger,
	}

	def := models.DefaultRateLimitSettings()
	p.cur.Store(&def)

	return p
}

// Current returns the settings snapshot in force.
func (p *Provider) Current() models.RateLimitSettings {
	return *p.cur.Load()
}

// OnChange registers a callback invoked after every reload that swaps in a
// new settings version. Callbacks run outside the provider's lock.
func (p *Provider) OnChange(fn func(models.RateLimitSettings)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.observers = append(p.observers, fn)
}

// Reload fetches the settings row and swaps the snapshot if its version
// changed. It reports whether a new snapshot was installed. Fetch failures
// are logged and the current snapshot kept.
func (p *Provider) Reload(ctx context.Context) bool {
	const op = "settings.Provider.Reload"

	fetched, err := p.store.Fetch(ctx)
	if err != nil {
		p.logger.Warn(
			"failed to fetch settings, keeping current snapshot",
			slog.Group(op, slog.Any("err", err)),
		)
		return false
	}

	if fetched.Version == p.Current().Version {
		return false
	}

	p.cur.Store(&fetched)

	p.mu.Lock()
	observers := make([]func(models.RateLimitSettings), len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(fetched)
	}

	return true
}
