package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository provides reward setting storage and attendance bookkeeping.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetSetting implements SettingSource. Absence is reported as (nil, nil).
func (r *Repository) GetSetting(ctx context.Context, key string) (*Setting, error) {
	var s Setting
	err := r.db.GetContext(ctx, &s, `SELECT key, name, point, updated_at FROM reward_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get setting: %w", err)
	}
	return &s, nil
}

func (r *Repository) ListSettings(ctx context.Context) ([]Setting, error) {
	settings := make([]Setting, 0)
	err := r.db.SelectContext(ctx, &settings, `SELECT key, name, point, updated_at FROM reward_settings ORDER BY key`)
	return settings, err
}

func (r *Repository) UpsertSetting(ctx context.Context, s *Setting) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reward_settings (key, name, point, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET name = EXCLUDED.name, point = EXCLUDED.point, updated_at = now()
	`, s.Key, s.Name, s.Point)
	return err
}

// HasAttendanceSince reports whether the user already has an attendance
// transaction at or after the given instant. Runs on the caller's tx so the
// check is serialized by the balance row lock.
func (r *Repository) HasAttendanceSince(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM point_transactions
			WHERE user_id = $1 AND category = 'attendance' AND created_at >= $2
		)
	`, userID, since)
	return exists, err
}
