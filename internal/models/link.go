package models

import "time"

// LinkStatus is the lifecycle status of a link.
type LinkStatus string

const (
	LinkStatusActive  LinkStatus = "active"
	LinkStatusExpired LinkStatus = "expired"
	LinkStatusBlocked LinkStatus = "blocked"
)

// ModerationStatus is the moderation state assigned to a link.
type ModerationStatus string

const (
	ModerationClean   ModerationStatus = "clean"
	ModerationFlagged ModerationStatus = "flagged"
	ModerationRemoved ModerationStatus = "removed"
)

// Link represents a short link and its access rules.
type Link struct {
	// ID is the unique identifier for the link record.
	ID int64
	// Slug is the short code the link is dereferenced by. Immutable once created.
	Slug string
	// TargetURL is the destination the slug redirects to.
	TargetURL string
	// Title is an optional human-readable label shown on preview pages.
	Title string
	// Password guards the link when non-empty. Stored in clear, which is a
	// known defect inherited from the original system.
	Password string
	// IsOneTime burns the link after a single consumed redirect.
	IsOneTime bool
	// MaxClicks caps consumed redirects. Zero means unlimited.
	MaxClicks int64
	// Clicks counts consumed redirects. Never exceeds the effective limit.
	Clicks int64
	// ExpiresAt deactivates the link after this time when set.
	ExpiresAt *time.Time
	// ScheduleStart delays activation until this time when set.
	ScheduleStart *time.Time
	// ShowPreview forces an interstitial preview page before redirecting.
	ShowPreview bool
	// Status is the lifecycle status of the link.
	Status LinkStatus
	// ModerationStatus is the moderation state of the link.
	ModerationStatus ModerationStatus
	// SafetyScore is the last heuristic score of the destination, if scanned.
	SafetyScore *int
	// SafetyVerdict is the verdict derived from SafetyScore, if scanned.
	SafetyVerdict string
	// CreatedAt is the timestamp indicating when the link was created.
	CreatedAt time.Time
	// UpdatedAt is the timestamp indicating when the link was last updated.
	UpdatedAt time.Time
}

// EffectiveClickLimit returns the click quota in force: 1 for one-time links,
// MaxClicks otherwise, 0 meaning unlimited.
func (l *Link) EffectiveClickLimit() int64 {
	if l.IsOneTime {
		return 1
	}
	if l.MaxClicks > 0 {
		return l.MaxClicks
	}
	return 0
}

// ClicksExhausted reports whether the click quota has already been consumed.
func (l *Link) ClicksExhausted() bool {
	limit := l.EffectiveClickLimit()
	return limit > 0 && l.Clicks >= limit
}
