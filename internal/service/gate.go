package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snaplink/snaplink/internal/database"
	"github.com/snaplink/snaplink/internal/models"
)

// LinkRepository defines the interface for working with links at the business logic layer.
type LinkRepository interface {
	// Create inserts a new link into the repository.
	// Returns the created link or an error if the operation fails.
	Create(ctx context.Context, link *models.Link) (*models.Link, error)

	// GetBySlug retrieves a link by its slug without mutating it.
	// Returns the link if found or an error if not found.
	GetBySlug(ctx context.Context, slug string) (*models.Link, error)

	// ConsumeClick atomically increments the click counter, flipping the link
	// to expired when the increment exhausts the quota. Returns the updated
	// link, or database.ErrClickQuotaExhausted when the quota was already
	// consumed.
	ConsumeClick(ctx context.Context, slug string) (*models.Link, error)

	// MarkExpired transitions the link's status to expired. Idempotent.
	MarkExpired(ctx context.Context, slug string) error

	// UpdateSafety persists a safety assessment for the link, flagging it for
	// moderation when requested.
	UpdateSafety(ctx context.Context, slug string, score int, verdict string, flagged bool) error

	// ListForSafetyRescan returns links eligible for a safety rescan.
	ListForSafetyRescan(ctx context.Context, onlyMissing bool) ([]*models.Link, error)
}

// OutcomeKind identifies a resolution outcome variant.
type OutcomeKind string

const (
	OutcomeNotFound         OutcomeKind = "not_found"
	OutcomeBlocked          OutcomeKind = "blocked"
	OutcomeExpired          OutcomeKind = "expired"
	OutcomeScheduled        OutcomeKind = "scheduled"
	OutcomePasswordRequired OutcomeKind = "password_required"
	OutcomePreviewRequired  OutcomeKind = "preview_required"
	OutcomeActive           OutcomeKind = "active"
)

const (
	// ExpiryReasonTime marks expiry caused by the expires_at deadline.
	ExpiryReasonTime = "link has expired"
	// ExpiryReasonClicks marks expiry caused by click quota exhaustion.
	ExpiryReasonClicks = "click limit reached"
)

// Outcome is the result of dereferencing a slug. Exactly one variant applies;
// Link is populated for the password, preview and active variants, Reason for
// expired, StartsAt for scheduled.
type Outcome struct {
	Kind     OutcomeKind
	Link     *models.Link
	Reason   string
	StartsAt time.Time
}

// ResolutionGate applies the ordered rule chain that decides what happens
// when a slug is dereferenced. The order is deliberate: existence, moderation
// block, expiry and schedule are read-only checks that short-circuit before
// the click mutation; the click is consumed before the password and preview
// gates so a consumed redirect is accounted exactly once.
type ResolutionGate struct {
	repo LinkRepository
}

func NewResolutionGate(repo LinkRepository) *ResolutionGate {
	return &ResolutionGate{
		repo: repo,
	}
}

// Peek resolves a slug without consuming a click. Calling it any number of
// times never changes the click count; only the time-based status transition
// to expired is persisted.
func (g *ResolutionGate) Peek(ctx context.Context, slug string, now time.Time) (Outcome, error) {
	const op = "service.ResolutionGate.Peek"

	link, outcome, err := g.checkChain(ctx, slug, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	if outcome != nil {
		return *outcome, nil
	}

	return gateOutcome(link), nil
}

// Consume resolves a slug for an actual redirect, incrementing the click
// count. The increment happens after the quota check and before the password
// and preview gates; exhaustion caused by the increment becomes visible to
// the next caller, not this one.
func (g *ResolutionGate) Consume(ctx context.Context, slug string, now time.Time) (Outcome, error) {
	const op = "service.ResolutionGate.Consume"

	link, outcome, err := g.checkChain(ctx, slug, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}
	if outcome != nil {
		return *outcome, nil
	}

	updated, err := g.repo.ConsumeClick(ctx, slug)
	if err != nil {
		if errors.Is(err, database.ErrClickQuotaExhausted) {
			// A concurrent consumer spent the last click between our read
			// and the update.
			if err := g.markExpired(ctx, link); err != nil {
				return Outcome{}, fmt.Errorf("%s: %w", op, err)
			}
			return Outcome{Kind: OutcomeExpired, Reason: ExpiryReasonClicks}, nil
		}

		return Outcome{}, fmt.Errorf("%s: failed to consume click: %w", op, err)
	}

	return gateOutcome(updated), nil
}

// checkChain runs the shared, ordered, read-only part of the rule chain. It
// returns a non-nil outcome when the chain short-circuits; otherwise the
// loaded link for the caller to continue with.
func (g *ResolutionGate) checkChain(ctx context.Context, slug string, now time.Time) (*models.Link, *Outcome, error) {
	link, err := g.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return nil, &Outcome{Kind: OutcomeNotFound}, nil
		}

		return nil, nil, fmt.Errorf("failed to load link: %w", err)
	}

	if link.ModerationStatus == models.ModerationRemoved || link.Status == models.LinkStatusBlocked {
		return nil, &Outcome{Kind: OutcomeBlocked}, nil
	}

	if link.ExpiresAt != nil && now.After(*link.ExpiresAt) {
		if err := g.markExpired(ctx, link); err != nil {
			return nil, nil, err
		}
		return nil, &Outcome{Kind: OutcomeExpired, Reason: ExpiryReasonTime}, nil
	}

	if link.ScheduleStart != nil && now.Before(*link.ScheduleStart) {
		return nil, &Outcome{Kind: OutcomeScheduled, StartsAt: *link.ScheduleStart}, nil
	}

	if link.ClicksExhausted() {
		if err := g.markExpired(ctx, link); err != nil {
			return nil, nil, err
		}
		return nil, &Outcome{Kind: OutcomeExpired, Reason: ExpiryReasonClicks}, nil
	}

	return link, nil, nil
}

func (g *ResolutionGate) markExpired(ctx context.Context, link *models.Link) error {
	if link.Status == models.LinkStatusExpired {
		return nil
	}

	if err := g.repo.MarkExpired(ctx, link.Slug); err != nil {
		return fmt.Errorf("failed to mark link expired: %w", err)
	}

	return nil
}

// gateOutcome applies the password and preview gates, in that order, to a
// link that survived the rest of the chain.
func gateOutcome(link *models.Link) Outcome {
	if link.Password != "" {
		return Outcome{Kind: OutcomePasswordRequired, Link: link}
	}

	if link.ShowPreview {
		return Outcome{Kind: OutcomePreviewRequired, Link: link}
	}

	return Outcome{Kind: OutcomeActive, Link: link}
}
