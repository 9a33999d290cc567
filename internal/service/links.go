package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/snaplink/snaplink/internal/database"
	"github.com/snaplink/snaplink/internal/models"
	"github.com/snaplink/snaplink/internal/safety"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrMaxRetriesExceeded is returned when the maximum number of retries for generating a slug is exceeded.
var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating slug")

// CreateLinkParams carries the access rules a new link is created with.
type CreateLinkParams struct {
	TargetURL     string
	Slug          string
	Title         string
	Password      string
	IsOneTime     bool
	MaxClicks     int64
	ExpiresAt     *time.Time
	ScheduleStart *time.Time
	ShowPreview   bool
}

// LinkService manages link creation and safety scanning. Resolution goes
// through the ResolutionGate instead.
type LinkService struct {
	repo       LinkRepository
	slugLength int
}

func NewLinkService(repo LinkRepository, slugLength int) *LinkService {
	return &LinkService{
		repo:       repo,
		slugLength: slugLength,
	}
}

// CreateLink scores the destination, then stores the link with a generated
// slug unless a custom one was supplied. Destinations whose assessment
// recommends flagging are created with moderation status flagged rather than
// rejected, so a moderator can review them.
func (s *LinkService) CreateLink(ctx context.Context, params CreateLinkParams) (*models.Link, error) {
	const op = "service.LinkService.CreateLink"
	const maxRetries = 5

	assessment := safety.Score(params.TargetURL)

	moderation := models.ModerationClean
	if assessment.FlagRecommended {
		moderation = models.ModerationFlagged
	}

	link := &models.Link{
		Slug:             params.Slug,
		TargetURL:        params.TargetURL,
		Title:            params.Title,
		Password:         params.Password,
		IsOneTime:        params.IsOneTime,
		MaxClicks:        params.MaxClicks,
		ExpiresAt:        params.ExpiresAt,
		ScheduleStart:    params.ScheduleStart,
		ShowPreview:      params.ShowPreview,
		ModerationStatus: moderation,
		SafetyScore:      &assessment.Score,
		SafetyVerdict:    string(assessment.Verdict),
	}

	if link.Slug != "" {
		created, err := s.repo.Create(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}
		return created, nil
	}

	for i := 0; i < maxRetries; i++ {
		slug, err := gonanoid.New(s.slugLength)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate slug: %w", op, err)
		}

		link.Slug = slug

		created, err := s.repo.Create(ctx, link)
		if err != nil {
			if errors.Is(err, database.ErrSlugExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to create link: %w", op, err)
		}

		return created, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// GetLinkStats retrieves a link without mutating it.
func (s *LinkService) GetLinkStats(ctx context.Context, slug string) (*models.Link, error) {
	const op = "service.LinkService.GetLinkStats"

	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get link stats: %w", op, err)
	}

	return link, nil
}

// VerifyPassword compares a supplied password against the link's. The
// comparison is a plain equality check because passwords are stored in clear,
// a known defect inherited from the original system.
func (s *LinkService) VerifyPassword(ctx context.Context, slug, password string) (*models.Link, bool, error) {
	const op = "service.LinkService.VerifyPassword"

	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, false, fmt.Errorf("%s: failed to get link: %w", op, err)
	}

	if link.Password == "" {
		return link, true, nil
	}

	return link, link.Password == password, nil
}

// RescanSafety re-runs the scorer over stored links and persists the results.
// With onlyMissing set, links that already carry a score are skipped. Returns
// the number of links rescanned.
func (s *LinkService) RescanSafety(ctx context.Context, onlyMissing bool) (int, error) {
	const op = "service.LinkService.RescanSafety"

	links, err := s.repo.ListForSafetyRescan(ctx, onlyMissing)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to list links: %w", op, err)
	}

	var rescanned int
	for _, link := range links {
		assessment := safety.Score(link.TargetURL)

		err := s.repo.UpdateSafety(ctx, link.Slug,
			assessment.Score, string(assessment.Verdict), assessment.FlagRecommended)
		if err != nil {
			return rescanned, fmt.Errorf("%s: failed to update link safety: %w", op, err)
		}

		rescanned++
	}

	return rescanned, nil
}
