package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/snaplink/snaplink/internal/database"
	"github.com/snaplink/snaplink/internal/models"
	"github.com/stretchr/testify/assert"
)

var settingsColumns = []string{
	"general_max", "auth_max", "link_creation_max", "redirect_max",
	"suspicious_threshold", "block_duration_minutes", "version",
}

func setupSettingsRepository(t testing.TB) (*SettingsRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	repo := NewSettingsRepository(db)

	t.Cleanup(func() {
		mockDB.Close()
		db.Close()
	})

	return repo, mock
}

func TestSettingsRepository_Fetch(t *testing.T) {
	t.Run("settings not found", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM rate_limit_settings`).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Fetch(context.TODO())

		assert.Error(t, err)
		assert.ErrorIs(t, err, database.ErrSettingsNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown error", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM rate_limit_settings`).
			WillReturnError(errUnknown)

		_, err := repo.Fetch(context.TODO())

		assert.Error(t, err)
		assert.ErrorIs(t, err, errUnknown)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("success", func(t *testing.T) {
		repo, mock := setupSettingsRepository(t)

		rows := sqlmock.NewRows(settingsColumns).
			AddRow(500, 10, 25, 200, 300, 15, int64(3))

		mock.ExpectQuery(`SELECT (.+) FROM rate_limit_settings`).
			WillReturnRows(rows)

		got, err := repo.Fetch(context.TODO())

		assert.NoError(t, err)
		assert.Equal(t, models.RateLimitSettings{
			GeneralMax:           500,
			AuthMax:              10,
			LinkCreationMax:      25,
			RedirectMax:          200,
			SuspiciousThreshold:  300,
			BlockDurationMinutes: 15,
			Version:              3,
		}, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
