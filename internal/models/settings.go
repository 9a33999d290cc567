package models

import "time"

// RateLimitSettings holds the admission-control knobs stored in the settings
// table and served through the settings provider. Quota maxima are per
// 15-minute window; SuspiciousThreshold is requests per minute.
type RateLimitSettings struct {
	GeneralMax           int
	AuthMax              int
	LinkCreationMax      int
	RedirectMax          int
	SuspiciousThreshold  int
	BlockDurationMinutes int
	// Version is bumped on every settings edit so the provider can detect
	// change without comparing field-by-field.
	Version int64
}

// BlockDuration returns BlockDurationMinutes as a time.Duration.
func (s RateLimitSettings) BlockDuration() time.Duration {
	return time.Duration(s.BlockDurationMinutes) * time.Minute
}

// DefaultRateLimitSettings are the hard-coded fallbacks used whenever the
// settings store is unavailable. Requests must never fail because
// configuration could not be fetched.
func DefaultRateLimitSettings() RateLimitSettings {
	return RateLimitSettings{
		GeneralMax:           1000,
		AuthMax:              20,
		LinkCreationMax:      50,
		RedirectMax:          300,
		SuspiciousThreshold:  500,
		BlockDurationMinutes: 10,
		Version:              0,
	}
}
