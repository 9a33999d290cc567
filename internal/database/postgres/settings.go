package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/snaplink/snaplink/internal/database"
	"github.com/snaplink/snaplink/internal/models"
)

type settingsRecord struct {
	GeneralMax           int   `db:"general_max"`
	AuthMax              int   `db:"auth_max"`
	LinkCreationMax      int   `db:"link_creation_max"`
	RedirectMax          int   `db:"redirect_max"`
	SuspiciousThreshold  int   `db:"suspicious_threshold"`
	BlockDurationMinutes int   `db:"block_duration_minutes"`
	Version              int64 `db:"version"`
}

func (r *settingsRecord) ToSettings() models.RateLimitSettings {
	return models.RateLimitSettings{
		GeneralMax:           r.GeneralMax,
		AuthMax:              r.AuthMax,
		LinkCreationMax:      r.LinkCreationMax,
		RedirectMax:          r.RedirectMax,
		SuspiciousThreshold:  r.SuspiciousThreshold,
		BlockDurationMinutes: r.BlockDurationMinutes,
		Version:              r.Version,
	}
}

// SettingsRepository reads the single rate_limit_settings row that the
// settings provider refreshes from.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{
		db: db,
	}
}

func (r *SettingsRepository) Fetch(ctx context.Context) (models.RateLimitSettings, error) {
	const op = "database.postgres.SettingsRepository.Fetch"

	rec := new(settingsRecord)
	query := `SELECT general_max, auth_max, link_creation_max, redirect_max,
			suspicious_threshold, block_duration_minutes, version
		FROM rate_limit_settings
		ORDER BY version DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, rec, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.RateLimitSettings{}, fmt.Errorf("%s: %w", op, database.ErrSettingsNotFound)
		}

		return models.RateLimitSettings{}, fmt.Errorf("%s: failed to fetch settings: %w", op, err)
	}

	return rec.ToSettings(), nil
}
