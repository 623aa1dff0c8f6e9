package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/siterank/siterank-api/internal/pkg/cursor"
	"github.com/siterank/siterank-api/internal/pkg/metrics"
)

// Store owns the balance table and the append-only transaction log. It is
// the only component allowed to mutate a balance.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ensureBalance(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO point_balances (user_id, points)
		VALUES ($1, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// LockBalance creates a zero balance if the user has none, then takes an
// exclusive row lock on it. The lock is held until tx commits, serializing
// all balance mutations for the user.
func (s *Store) LockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	if err := s.ensureBalance(ctx, tx, userID); err != nil {
		return 0, fmt.Errorf("ensure balance: %w", err)
	}

	var points int64
	err := tx.GetContext(ctx, &points, `SELECT points FROM point_balances WHERE user_id = $1 FOR UPDATE`, userID)
	if err != nil {
		return 0, fmt.Errorf("lock balance: %w", err)
	}
	return points, nil
}

// ApplyDelta mutates the locked balance and appends exactly one transaction
// row, inside the caller's transaction.
//
// A negative delta with RequireSufficient set fails with
// ErrInsufficientPoints and writes nothing. Otherwise the balance is clamped
// at zero and the applied amount is the difference between old and new
// balance, so a -500 request against 300 applies -300. A zero applied amount
// still produces a transaction row: the audit trail records every attempt.
func (s *Store) ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, meta ApplyMeta) (*Applied, error) {
	balance, err := s.LockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	candidate := balance + delta
	if candidate < 0 && meta.RequireSufficient {
		return nil, ErrInsufficientPoints
	}

	newBalance := candidate
	if newBalance < 0 {
		newBalance = 0
	}
	applied := newBalance - balance

	if _, err := tx.ExecContext(ctx, `
		UPDATE point_balances SET points = $1, updated_at = now() WHERE user_id = $2
	`, newBalance, userID); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	txType := meta.Type
	if txType == "" {
		if applied < 0 {
			txType = TransactionTypeSpend
		} else {
			txType = TransactionTypeEarn
		}
	}

	record := &Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         txType,
		Amount:       applied,
		BalanceAfter: newBalance,
		Category:     meta.Category,
		Description:  meta.Description,
	}
	if meta.Reference != nil {
		record.ReferenceType = sql.NullString{String: meta.Reference.Type, Valid: true}
		record.ReferenceID = uuid.NullUUID{UUID: meta.Reference.ID, Valid: true}
	}
	if meta.Metadata != nil {
		// The metadata bag is the only durable explanation for why
		// requested != applied, so the computed amounts always go in.
		merged := make(map[string]interface{}, len(meta.Metadata)+5)
		for k, v := range meta.Metadata {
			merged[k] = v
		}
		merged["balance_before"] = balance
		merged["balance_after"] = newBalance
		merged["requested_points"] = delta
		merged["applied_points"] = applied
		merged["points_were_capped"] = applied != delta

		raw, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		record.Metadata = raw
	}

	if err := s.insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	metrics.PointTransactions.WithLabelValues(string(txType)).Inc()

	return &Applied{
		NewBalance:  newBalance,
		Requested:   delta,
		Amount:      applied,
		Capped:      applied != delta,
		Transaction: record,
	}, nil
}

func (s *Store) insertTransaction(ctx context.Context, tx *sqlx.Tx, record *Transaction) error {
	var ref interface{}
	if record.ReferenceID.Valid {
		ref = record.ReferenceID.UUID
	}
	var refType interface{}
	if record.ReferenceType.Valid {
		refType = record.ReferenceType.String
	}
	var metadata interface{}
	if len(record.Metadata) > 0 {
		metadata = []byte(record.Metadata)
	}

	// clock_timestamp(): the insert runs while the balance row lock is held,
	// so wall-clock insert time matches lock acquisition order.
	err := tx.QueryRowContext(ctx, `
		INSERT INTO point_transactions (id, user_id, type, amount, balance_after, category, reference_type, reference_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, clock_timestamp())
		RETURNING created_at
	`, record.ID, record.UserID, string(record.Type), record.Amount, record.BalanceAfter,
		record.Category, refType, ref, record.Description, metadata,
	).Scan(&record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetBalance reads the current balance outside any lock scope, creating a
// zero balance if the user has none.
func (s *Store) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	if err := s.ensureBalance(ctx, s.db, userID); err != nil {
		return nil, err
	}

	var b Balance
	err := s.db.GetContext(ctx, &b, `SELECT user_id, points, updated_at FROM point_balances WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListTransactions pages a user's transaction history newest-first by
// (created_at, id) keyset. Fetches limit+1 rows; the caller trims.
func (s *Store) ListTransactions(ctx context.Context, userID uuid.UUID, cur *cursor.Cursor, limit int) ([]Transaction, error) {
	rows := make([]Transaction, 0, limit+1)

	if cur != nil {
		err := s.db.SelectContext(ctx, &rows, `
			SELECT id, user_id, type, amount, balance_after, category, reference_type, reference_id, description, metadata, created_at
			FROM point_transactions
			WHERE user_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, userID, cur.SortValue, cur.ID, limit+1)
		return rows, err
	}

	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, amount, balance_after, category, reference_type, reference_id, description, metadata, created_at
		FROM point_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit+1)
	return rows, err
}

// ListAllForUser returns the full history oldest-first. Used by the
// reconciliation check and tests.
func (s *Store) ListAllForUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	rows := make([]Transaction, 0)
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, type, amount, balance_after, category, reference_type, reference_id, description, metadata, created_at
		FROM point_transactions
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`, userID)
	return rows, err
}
