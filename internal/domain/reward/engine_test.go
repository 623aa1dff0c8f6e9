package reward_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/domain/reward"
)

type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeLedger struct {
	balance int64
	applied []ledger.ApplyMeta
	deltas  []int64
}

func (f *fakeLedger) LockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	return f.balance, nil
}

func (f *fakeLedger) ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, meta ledger.ApplyMeta) (*ledger.Applied, error) {
	candidate := f.balance + delta
	if meta.RequireSufficient && candidate < 0 {
		return nil, ledger.ErrInsufficientPoints
	}
	capped := candidate < 0
	if capped {
		candidate = 0
	}
	applied := candidate - f.balance
	f.balance = candidate
	f.applied = append(f.applied, meta)
	f.deltas = append(f.deltas, applied)

	return &ledger.Applied{
		NewBalance: candidate,
		Requested:  delta,
		Amount:     applied,
		Capped:     capped,
		Transaction: &ledger.Transaction{
			ID:           uuid.New(),
			UserID:       userID,
			Amount:       applied,
			BalanceAfter: candidate,
			Category:     meta.Category,
		},
	}, nil
}

type fakeSettings struct {
	settings map[string]*reward.Setting
}

func (f *fakeSettings) GetSetting(ctx context.Context, key string) (*reward.Setting, error) {
	return f.settings[key], nil
}

type fakeAttendance struct {
	claimed bool
}

func (f *fakeAttendance) HasAttendanceSince(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, since time.Time) (bool, error) {
	return f.claimed, nil
}

func newEngine(balance int64, claimed bool, settings ...*reward.Setting) (*reward.Engine, *fakeLedger) {
	byKey := make(map[string]*reward.Setting)
	for _, s := range settings {
		byKey[s.Key] = s
	}
	pl := &fakeLedger{balance: balance}
	engine := reward.NewEngine(fakeTx{}, pl, &fakeSettings{settings: byKey}, &fakeAttendance{claimed: claimed})
	return engine, pl
}

func TestRewardResolvesSettingPoints(t *testing.T) {
	engine, pl := newEngine(0, false, &reward.Setting{Key: "welcome", Name: "Welcome bonus", Point: 300})

	record, err := engine.Reward(context.Background(), uuid.New(), "welcome", "signup", reward.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(300), record.Amount)
	assert.Equal(t, int64(300), pl.balance)

	meta := pl.applied[0]
	assert.Equal(t, "Welcome bonus", meta.Description)
	assert.Equal(t, "welcome", meta.Metadata["point_setting_key"])
	assert.Equal(t, true, meta.Metadata["point_setting_found"])
}

func TestRewardUnknownSettingStillAudits(t *testing.T) {
	engine, pl := newEngine(500, false)

	record, err := engine.Reward(context.Background(), uuid.New(), "no_such_key", "signup", reward.Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), record.Amount)
	assert.Equal(t, int64(500), pl.balance)

	meta := pl.applied[0]
	assert.Equal(t, "no_such_key", meta.Description)
	assert.Equal(t, false, meta.Metadata["point_setting_found"])
}

func TestRewardOverrideReplacesSetting(t *testing.T) {
	engine, pl := newEngine(0, false, &reward.Setting{Key: "welcome", Name: "Welcome bonus", Point: 300})

	override := int64(1000)
	record, err := engine.Reward(context.Background(), uuid.New(), "welcome", "signup", reward.Options{
		OverridePoints: &override,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1000), record.Amount)
	assert.Equal(t, int64(1000), pl.balance)
}

func TestRewardNegativeDeltaCapsAtZero(t *testing.T) {
	engine, pl := newEngine(200, false)

	override := int64(-500)
	record, err := engine.Reward(context.Background(), uuid.New(), "penalty", "moderation", reward.Options{
		OverridePoints: &override,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(-200), record.Amount)
	assert.Equal(t, int64(0), pl.balance)
}

func TestClaimAttendance(t *testing.T) {
	engine, pl := newEngine(0, false, &reward.Setting{Key: reward.SettingKeyAttendance, Name: "Daily attendance", Point: 100})

	record, err := engine.ClaimAttendance(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, int64(100), record.Amount)
	assert.Equal(t, int64(100), pl.balance)
}

func TestClaimAttendanceTwiceSameDay(t *testing.T) {
	engine, pl := newEngine(100, true, &reward.Setting{Key: reward.SettingKeyAttendance, Name: "Daily attendance", Point: 100})

	_, err := engine.ClaimAttendance(context.Background(), uuid.New())
	require.ErrorIs(t, err, reward.ErrAlreadyClaimed)
	assert.Equal(t, int64(100), pl.balance)
}

func TestGrant(t *testing.T) {
	engine, pl := newEngine(0, false)
	adminID := uuid.New()

	record, err := engine.Grant(context.Background(), adminID, uuid.New(), 2500, "manual correction")
	require.NoError(t, err)

	assert.Equal(t, int64(2500), record.Amount)

	meta := pl.applied[0]
	assert.Equal(t, adminID.String(), meta.Metadata["admin_id"])
	assert.Equal(t, "manual correction", meta.Metadata["reason"])
}

func TestGrantZeroPoints(t *testing.T) {
	engine, _ := newEngine(0, false)

	_, err := engine.Grant(context.Background(), uuid.New(), uuid.New(), 0, "")
	require.ErrorIs(t, err, reward.ErrInvalidGrant)
}
