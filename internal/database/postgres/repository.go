package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/snaplink/snaplink/internal/database"
	"github.com/snaplink/snaplink/internal/models"
)

type linkRecord struct {
	ID               int64      `db:"id"`
	Slug             string     `db:"slug"`
	TargetURL        string     `db:"target_url"`
	Title            string     `db:"title"`
	Password         string     `db:"password"`
	IsOneTime        bool       `db:"is_one_time"`
	MaxClicks        int64      `db:"max_clicks"`
	Clicks           int64      `db:"clicks"`
	ExpiresAt        *time.Time `db:"expires_at"`
	ScheduleStart    *time.Time `db:"schedule_start"`
	ShowPreview      bool       `db:"show_preview"`
	Status           string     `db:"status"`
	ModerationStatus string     `db:"moderation_status"`
	SafetyScore      *int       `db:"safety_score"`
	SafetyVerdict    string     `db:"safety_verdict"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r *linkRecord) ToLink() *models.Link {
	return &models.Link{
		ID:               r.ID,
		Slug:             r.Slug,
		TargetURL:        r.TargetURL,
		Title:            r.Title,
		Password:         r.Password,
		IsOneTime:        r.IsOneTime,
		MaxClicks:        r.MaxClicks,
		Clicks:           r.Clicks,
		ExpiresAt:        r.ExpiresAt,
		ScheduleStart:    r.ScheduleStart,
		ShowPreview:      r.ShowPreview,
		Status:           models.LinkStatus(r.Status),
		ModerationStatus: models.ModerationStatus(r.ModerationStatus),
		SafetyScore:      r.SafetyScore,
		SafetyVerdict:    r.SafetyVerdict,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{
		db: db,
	}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.Link) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.Create"

	rec := new(linkRecord)
	query := `INSERT INTO links(slug, target_url, title, password, is_one_time, max_clicks,
			expires_at, schedule_start, show_preview, moderation_status, safety_score, safety_verdict)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query,
		link.Slug, link.TargetURL, link.Title, link.Password, link.IsOneTime, link.MaxClicks,
		link.ExpiresAt, link.ScheduleStart, link.ShowPreview, link.ModerationStatus,
		link.SafetyScore, link.SafetyVerdict)
	if err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, database.ErrSlugExists)
		}

		return nil, fmt.Errorf("%s: failed to create link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.GetBySlug"

	rec := new(linkRecord)
	query := `SELECT * FROM links WHERE slug = $1`

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get link record: %w", op, err)
	}

	return rec.ToLink(), nil
}

// ConsumeClick increments the click counter in a single conditional UPDATE so
// two concurrent redirects can never overshoot the quota. The update also
// flips the status to expired when the incremented count reaches the
// effective limit, making exhaustion visible to the next caller. No rows
// updated means the quota was already consumed.
func (r *LinkRepository) ConsumeClick(ctx context.Context, slug string) (*models.Link, error) {
	const op = "database.postgres.LinkRepository.ConsumeClick"

	rec := new(linkRecord)
	query := `UPDATE links
		SET clicks = clicks + 1,
			status = CASE
				WHEN (CASE WHEN is_one_time THEN 1 ELSE max_clicks END) > 0
					AND clicks + 1 >= (CASE WHEN is_one_time THEN 1 ELSE max_clicks END)
				THEN 'expired'
				ELSE status
			END,
			updated_at = now()
		WHERE slug = $1
			AND ((CASE WHEN is_one_time THEN 1 ELSE max_clicks END) = 0
				OR clicks < (CASE WHEN is_one_time THEN 1 ELSE max_clicks END))
		RETURNING *`

	err := r.db.GetContext(ctx, rec, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, database.ErrClickQuotaExhausted)
		}

		return nil, fmt.Errorf("%s: failed to consume click: %w", op, err)
	}

	return rec.ToLink(), nil
}

func (r *LinkRepository) MarkExpired(ctx context.Context, slug string) error {
	const op = "database.postgres.LinkRepository.MarkExpired"

	query := `UPDATE links
		SET status = 'expired', updated_at = now()
		WHERE slug = $1 AND status <> 'expired'`

	if _, err := r.db.ExecContext(ctx, query, slug); err != nil {
		return fmt.Errorf("%s: failed to mark link expired: %w", op, err)
	}

	return nil
}

func (r *LinkRepository) UpdateSafety(ctx context.Context, slug string, score int, verdict string, flagged bool) error {
	const op = "database.postgres.LinkRepository.UpdateSafety"

	query := `UPDATE links
		SET safety_score = $1,
			safety_verdict = $2,
			moderation_status = CASE
				WHEN $3 AND moderation_status = 'clean' THEN 'flagged'
				ELSE moderation_status
			END,
			updated_at = now()
		WHERE slug = $4`

	res, err := r.db.ExecContext(ctx, query, score, verdict, flagged, slug)
	if err != nil {
		return fmt.Errorf("%s: failed to update link safety: %w", op, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, database.ErrLinkNotFound)
	}

	return nil
}

func (r *LinkRepository) ListForSafetyRescan(ctx context.Context, onlyMissing bool) ([]*models.Link, error) {
	const op = "database.postgres.LinkRepository.ListForSafetyRescan"

	var recs []linkRecord
	query := `SELECT * FROM links WHERE $1 = FALSE OR safety_score IS NULL ORDER BY id`

	if err := r.db.SelectContext(ctx, &recs, query, onlyMissing); err != nil {
		return nil, fmt.Errorf("%s: failed to list links for rescan: %w", op, err)
	}

	links := make([]*models.Link, 0, len(recs))
	for i := range recs {
		links = append(links, recs[i].ToLink())
	}

	return links, nil
}
