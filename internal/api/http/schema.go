package http

import (
	"time"

	"github.com/snaplink/snaplink/internal/models"
)

// createLinkRequest represents the request payload for publishing a new link.
type createLinkRequest struct {
	TargetURL     string     `json:"target_url" validate:"required,url"`
	Slug          string     `json:"slug" validate:"omitempty,min=3,max=64"`
	Title         string     `json:"title" validate:"omitempty,max=255"`
	Password      string     `json:"password"`
	IsOneTime     bool       `json:"is_one_time"`
	MaxClicks     int64      `json:"max_clicks" validate:"omitempty,min=0"`
	ExpiresAt     *time.Time `json:"expires_at"`
	ScheduleStart *time.Time `json:"schedule_start"`
	ShowPreview   bool       `json:"show_preview"`
}

// unlockRequest represents the password confirmation payload.
type unlockRequest struct {
	Password string `json:"password" validate:"required"`
}

// scanURLRequest represents the payload for an ad hoc safety scan.
type scanURLRequest struct {
	URL string `json:"url" validate:"required"`
}

// rescanRequest represents the payload for the batch safety rescan.
type rescanRequest struct {
	OnlyMissing bool `json:"only_missing"`
}

// blockIPRequest represents the payload for a manual IP block.
type blockIPRequest struct {
	Reason string `json:"reason"`
}

// linkResponse represents a link in API responses. The password itself is
// never rendered, only whether one is set.
type linkResponse struct {
	Slug              string     `json:"slug"`
	TargetURL         string     `json:"target_url,omitempty"`
	Title             string     `json:"title,omitempty"`
	PasswordProtected bool       `json:"password_protected"`
	IsOneTime         bool       `json:"is_one_time"`
	MaxClicks         int64      `json:"max_clicks"`
	Clicks            int64      `json:"clicks"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	ScheduleStart     *time.Time `json:"schedule_start,omitempty"`
	ShowPreview       bool       `json:"show_preview"`
	Status            string     `json:"status"`
	ModerationStatus  string     `json:"moderation_status"`
	SafetyScore       *int       `json:"safety_score,omitempty"`
	SafetyVerdict     string     `json:"safety_verdict,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// toLinkResponse converts a link model from the business layer into a response payload.
func toLinkResponse(link *models.Link) linkResponse {
	return linkResponse{
		Slug:              link.Slug,
		TargetURL:         link.TargetURL,
		Title:             link.Title,
		PasswordProtected: link.Password != "",
		IsOneTime:         link.IsOneTime,
		MaxClicks:         link.MaxClicks,
		Clicks:            link.Clicks,
		ExpiresAt:         link.ExpiresAt,
		ScheduleStart:     link.ScheduleStart,
		ShowPreview:       link.ShowPreview,
		Status:            string(link.Status),
		ModerationStatus:  string(link.ModerationStatus),
		SafetyScore:       link.SafetyScore,
		SafetyVerdict:     link.SafetyVerdict,
		CreatedAt:         link.CreatedAt,
		UpdatedAt:         link.UpdatedAt,
	}
}

// peekResponse represents the outcome of a read-only slug resolution.
type peekResponse struct {
	Status   string        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	StartsAt *time.Time    `json:"starts_at,omitempty"`
	Link     *linkResponse `json:"link,omitempty"`
}
