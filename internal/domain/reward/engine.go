package reward

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/pkg/database"
)

// LedgerStore is the slice of the ledger the engine needs.
type LedgerStore interface {
	LockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error)
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, meta ledger.ApplyMeta) (*ledger.Applied, error)
}

// AttendanceChecker answers "already claimed today?" inside the lock scope.
type AttendanceChecker interface {
	HasAttendanceSince(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, since time.Time) (bool, error)
}

// Engine computes point deltas from named settings and applies them through
// the ledger store, always producing an audit record.
type Engine struct {
	tx         database.TxRunner
	ledger     LedgerStore
	settings   SettingSource
	attendance AttendanceChecker
}

func NewEngine(tx database.TxRunner, ledgerStore LedgerStore, settings SettingSource, attendance AttendanceChecker) *Engine {
	return &Engine{tx: tx, ledger: ledgerStore, settings: settings, attendance: attendance}
}

// Reward resolves settingKey to a point delta and applies it. OverridePoints
// replaces the setting value entirely. An unknown key applies a zero delta
// but still writes a transaction with point_setting_found=false.
func (e *Engine) Reward(ctx context.Context, userID uuid.UUID, settingKey, category string, opts Options) (*ledger.Transaction, error) {
	var applied *ledger.Applied
	err := e.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		applied, err = e.rewardInTx(ctx, tx, userID, settingKey, category, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("setting_key", settingKey).
		Str("category", category).
		Int64("requested", applied.Requested).
		Int64("applied", applied.Amount).
		Int64("balance", applied.NewBalance).
		Msg("reward applied")

	return applied.Transaction, nil
}

// RewardInTx applies a reward inside an existing transaction and lock scope.
// Used when the reward must be atomic with another operation, such as
// resolving a scam report.
func (e *Engine) RewardInTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, settingKey, category string, opts Options) (*ledger.Transaction, error) {
	applied, err := e.rewardInTx(ctx, tx, userID, settingKey, category, opts)
	if err != nil {
		return nil, err
	}
	return applied.Transaction, nil
}

func (e *Engine) rewardInTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, settingKey, category string, opts Options) (*ledger.Applied, error) {
	setting, err := e.settings.GetSetting(ctx, settingKey)
	if err != nil {
		return nil, err
	}
	found := setting != nil

	var delta int64
	if found {
		delta = setting.Point
	}
	if opts.OverridePoints != nil {
		delta = *opts.OverridePoints
	}

	metadata := make(map[string]interface{}, len(opts.Metadata)+2)
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	metadata["point_setting_key"] = settingKey
	metadata["point_setting_found"] = found

	description := settingKey
	if found {
		description = setting.Name
	}

	return e.ledger.ApplyDelta(ctx, tx, userID, delta, ledger.ApplyMeta{
		Category:          category,
		Reference:         opts.Reference,
		Description:       description,
		Metadata:          metadata,
		RequireSufficient: opts.RequireSufficientPoints,
	})
}

// ClaimAttendance awards the daily attendance reward, once per UTC day. The
// claimed-today check runs after the balance row lock is taken, so two
// concurrent claims cannot both pass it.
func (e *Engine) ClaimAttendance(ctx context.Context, userID uuid.UUID) (*ledger.Transaction, error) {
	var record *ledger.Transaction
	err := e.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := e.ledger.LockBalance(ctx, tx, userID); err != nil {
			return err
		}

		startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
		claimed, err := e.attendance.HasAttendanceSince(ctx, tx, userID, startOfDay)
		if err != nil {
			return err
		}
		if claimed {
			return ErrAlreadyClaimed
		}

		applied, err := e.rewardInTx(ctx, tx, userID, SettingKeyAttendance, "attendance", Options{})
		if err != nil {
			return err
		}
		record = applied.Transaction
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID.String()).Int64("amount", record.Amount).Msg("attendance claimed")
	return record, nil
}

// Grant applies an admin-specified point adjustment. Negative grants are
// capped at the available balance rather than failing.
func (e *Engine) Grant(ctx context.Context, adminID, userID uuid.UUID, points int64, description string) (*ledger.Transaction, error) {
	if points == 0 {
		return nil, ErrInvalidGrant
	}

	metadata := map[string]interface{}{"admin_id": adminID.String()}
	if description != "" {
		metadata["reason"] = description
	}

	return e.Reward(ctx, userID, "admin_grant", "admin_grant", Options{
		OverridePoints: &points,
		Metadata:       metadata,
	})
}
