package services

import (
	"context"
	"database/sql"

	"github.com/giftmind/giftmind-backend/internal/models"
)

// SettingsPatch carries the optional settings fields of an update request.
type SettingsPatch struct {
	ImportantDateReminder *bool `json:"importantDateReminder"`
	InspirationPush       *bool `json:"inspirationPush"`
}

// SettingsService owns per-user notification preferences.
type SettingsService struct {
	db *sql.DB
}

func NewSettingsService(db *sql.DB) *SettingsService {
	return &SettingsService{db: db}
}

// Get returns the user's settings, falling back to the defaults when no row
// exists yet.
func (s *SettingsService) Get(ctx context.Context, userID int64) (*models.UserSettings, error) {
	settings := models.DefaultSettings()
	err := s.db.QueryRowContext(ctx, `
		SELECT important_date_reminder, inspiration_push
		FROM user_settings WHERE user_id = $1
	`, userID).Scan(&settings.ImportantDateReminder, &settings.InspirationPush)
	if err == sql.ErrNoRows {
		return &settings, nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// Update applies the provided fields over the current (or default) settings
// and upserts the row.
func (s *SettingsService) Update(ctx context.Context, userID int64, patch SettingsPatch) (*models.UserSettings, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.ImportantDateReminder != nil {
		current.ImportantDateReminder = *patch.ImportantDateReminder
	}
	if patch.InspirationPush != nil {
		current.InspirationPush = *patch.InspirationPush
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, important_date_reminder, inspiration_push)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			important_date_reminder = EXCLUDED.important_date_reminder,
			inspiration_push = EXCLUDED.inspiration_push,
			updated_at = NOW()
	`, userID, current.ImportantDateReminder, current.InspirationPush)
	if err != nil {
		return nil, err
	}
	return current, nil
}
