package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/siterank/siterank-api/internal/pkg/cursor"
)

const exchangeColumns = `e.id, e.user_id, e.site_id, e.points_amount, e.currency_amount, e.exchange_rate,
	e.site_user_id, e.status, e.admin_id, e.manager_id, e.processed_at, e.rejection_reason,
	e.created_at, e.updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending exchange inside the caller's transaction.
func (r *Repository) Create(ctx context.Context, tx *sqlx.Tx, e *Exchange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO exchanges (id, user_id, site_id, points_amount, currency_amount, exchange_rate,
			site_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`, e.ID, e.UserID, e.SiteID, e.PointsAmount, e.CurrencyAmount, e.ExchangeRate,
		e.SiteUserID, string(e.Status))
	if err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}
	return nil
}

// GetForUpdate reads an exchange row under a write lock, so two moderators
// cannot approve and reject the same request concurrently.
func (r *Repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Exchange, error) {
	var e Exchange
	err := tx.GetContext(ctx, &e, `
		SELECT `+exchangeColumns+`
		FROM exchanges e
		WHERE e.id = $1
		FOR UPDATE OF e
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExchangeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock exchange: %w", err)
	}
	return &e, nil
}

// UpdateStatus persists the result of a transition.
func (r *Repository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, e *Exchange) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE exchanges
		SET status = $2, admin_id = $3, manager_id = $4, processed_at = $5, rejection_reason = $6, updated_at = now()
		WHERE id = $1
	`, e.ID, string(e.Status), e.AdminID, e.ManagerID, e.ProcessedAt, e.RejectionReason)
	if err != nil {
		return fmt.Errorf("update exchange status: %w", err)
	}
	return nil
}

// GetByID reads an exchange with its site association.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Exchange, error) {
	var e Exchange
	err := r.db.GetContext(ctx, &e, `
		SELECT `+exchangeColumns+`, s.name AS site_name
		FROM exchanges e
		JOIN sites s ON s.id = e.site_id
		WHERE e.id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExchangeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListByUser pages a user's exchanges newest-first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, cur *cursor.Cursor, limit int) ([]Exchange, error) {
	exchanges := make([]Exchange, 0, limit+1)

	if cur != nil {
		err := r.db.SelectContext(ctx, &exchanges, `
			SELECT `+exchangeColumns+`, s.name AS site_name
			FROM exchanges e
			JOIN sites s ON s.id = e.site_id
			WHERE e.user_id = $1 AND (e.created_at, e.id) < ($2, $3)
			ORDER BY e.created_at DESC, e.id DESC
			LIMIT $4
		`, userID, cur.SortValue, cur.ID, limit+1)
		return exchanges, err
	}

	err := r.db.SelectContext(ctx, &exchanges, `
		SELECT `+exchangeColumns+`, s.name AS site_name
		FROM exchanges e
		JOIN sites s ON s.id = e.site_id
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC, e.id DESC
		LIMIT $2
	`, userID, limit+1)
	return exchanges, err
}

// List pages all exchanges, optionally filtered by status. Admin surface.
func (r *Repository) List(ctx context.Context, status Status, cur *cursor.Cursor, limit int) ([]Exchange, error) {
	exchanges := make([]Exchange, 0, limit+1)

	query := `
		SELECT ` + exchangeColumns + `, s.name AS site_name
		FROM exchanges e
		JOIN sites s ON s.id = e.site_id
		WHERE 1=1`
	args := make([]interface{}, 0, 4)
	idx := 1

	if status != "" {
		query += fmt.Sprintf(" AND e.status = $%d", idx)
		args = append(args, string(status))
		idx++
	}
	if cur != nil {
		query += fmt.Sprintf(" AND (e.created_at, e.id) < ($%d, $%d)", idx, idx+1)
		args = append(args, cur.SortValue, cur.ID)
		idx += 2
	}

	query += fmt.Sprintf(" ORDER BY e.created_at DESC, e.id DESC LIMIT $%d", idx)
	args = append(args, limit+1)

	err := r.db.SelectContext(ctx, &exchanges, query, args...)
	return exchanges, err
}
