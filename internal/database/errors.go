package database

import "errors"

var (
	// ErrSlugExists is returned when an attempt is made to create
	// a new link with a slug that already exists.
	ErrSlugExists = errors.New("slug exists")
	// ErrLinkNotFound is returned when an attempt is made to retrieve
	// a link using a slug that doesn't exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrClickQuotaExhausted is returned by the conditional click update
	// when the link's click quota has already been consumed.
	ErrClickQuotaExhausted = errors.New("click quota exhausted")
	// ErrSettingsNotFound is returned when the settings row is missing.
	ErrSettingsNotFound = errors.New("settings not found")
)
