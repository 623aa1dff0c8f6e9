package exchange_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/siterank/siterank-api/internal/domain/exchange"
	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/domain/site"
	"github.com/siterank/siterank-api/internal/pkg/cursor"
	"github.com/siterank/siterank-api/internal/pkg/jwt"
)

type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type ledgerCall struct {
	userID uuid.UUID
	delta  int64
	meta   ledger.ApplyMeta
}

type fakeLedger struct {
	balance int64
	calls   []ledgerCall
}

func (f *fakeLedger) ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, meta ledger.ApplyMeta) (*ledger.Applied, error) {
	candidate := f.balance + delta
	if meta.RequireSufficient && candidate < 0 {
		return nil, ledger.ErrInsufficientPoints
	}
	if candidate < 0 {
		candidate = 0
	}
	f.balance = candidate
	f.calls = append(f.calls, ledgerCall{userID: userID, delta: delta, meta: meta})
	return &ledger.Applied{NewBalance: candidate}, nil
}

type fakeSites struct {
	err error
}

func (f *fakeSites) CheckActive(ctx context.Context, id uuid.UUID) error {
	return f.err
}

type fakeStore struct {
	rows map[uuid.UUID]*exchange.Exchange
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*exchange.Exchange)}
}

func (f *fakeStore) Create(ctx context.Context, tx *sqlx.Tx, e *exchange.Exchange) error {
	clone := *e
	f.rows[e.ID] = &clone
	return nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*exchange.Exchange, error) {
	e, ok := f.rows[id]
	if !ok {
		return nil, exchange.ErrExchangeNotFound
	}
	clone := *e
	return &clone, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, e *exchange.Exchange) error {
	clone := *e
	f.rows[e.ID] = &clone
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*exchange.Exchange, error) {
	e, ok := f.rows[id]
	if !ok {
		return nil, exchange.ErrExchangeNotFound
	}
	clone := *e
	return &clone, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID uuid.UUID, cur *cursor.Cursor, limit int) ([]exchange.Exchange, error) {
	return nil, nil
}

func (f *fakeStore) List(ctx context.Context, status exchange.Status, cur *cursor.Cursor, limit int) ([]exchange.Exchange, error) {
	return nil, nil
}

func newService(balance int64, siteErr error) (*exchange.Service, *fakeLedger, *fakeStore) {
	pl := &fakeLedger{balance: balance}
	store := newFakeStore()
	svc := exchange.NewService(fakeTx{}, store, pl, &fakeSites{err: siteErr}, nil, exchange.Config{
		MinPoints:  5000,
		UnitPoints: 1000,
		Rate:       decimal.NewFromInt(1),
	})
	return svc, pl, store
}

func TestSubmitRejectsNonMultipleAmount(t *testing.T) {
	svc, _, _ := newService(100_000, nil)

	for _, amount := range []int64{-1000, 0, 5500, 999} {
		_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), amount, "user@site")
		if !errors.Is(err, exchange.ErrAmountNotMultiple) {
			t.Errorf("amount %d: expected ErrAmountNotMultiple, got %v", amount, err)
		}
	}
}

func TestSubmitRejectsBelowMinimum(t *testing.T) {
	svc, pl, _ := newService(100_000, nil)

	_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 4000, "user@site")
	if !errors.Is(err, exchange.ErrAmountBelowMinimum) {
		t.Fatalf("expected ErrAmountBelowMinimum, got %v", err)
	}
	if len(pl.calls) != 0 {
		t.Fatal("validation failure must not touch the ledger")
	}
}

func TestSubmitRejectsInactiveSite(t *testing.T) {
	svc, pl, _ := newService(100_000, site.ErrSiteInactive)

	_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 5000, "user@site")
	if !errors.Is(err, site.ErrSiteInactive) {
		t.Fatalf("expected ErrSiteInactive, got %v", err)
	}
	if len(pl.calls) != 0 {
		t.Fatal("site failure must not touch the ledger")
	}
}

func TestSubmitInsufficientBalance(t *testing.T) {
	svc, _, store := newService(4999, nil)

	_, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 5000, "user@site")
	if !errors.Is(err, ledger.ErrInsufficientPoints) {
		t.Fatalf("expected ErrInsufficientPoints, got %v", err)
	}
	if len(store.rows) != 0 {
		t.Fatal("failed debit must not create an exchange")
	}
}

func TestSubmitDebitsAndCreatesPending(t *testing.T) {
	svc, pl, _ := newService(10_000, nil)
	userID := uuid.New()

	e, err := svc.Submit(context.Background(), userID, uuid.New(), 6000, "user@site")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	if e.Status != exchange.StatusPending {
		t.Fatalf("expected pending, got %s", e.Status)
	}
	if !e.CurrencyAmount.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("expected currency amount 6000, got %s", e.CurrencyAmount)
	}

	if len(pl.calls) != 1 {
		t.Fatalf("expected 1 ledger call, got %d", len(pl.calls))
	}
	call := pl.calls[0]
	if call.delta != -6000 {
		t.Fatalf("expected delta -6000, got %d", call.delta)
	}
	if !call.meta.RequireSufficient {
		t.Fatal("submission debit must require sufficiency")
	}
	if call.meta.Reference == nil || call.meta.Reference.ID != e.ID {
		t.Fatal("debit must reference the exchange")
	}
	if pl.balance != 4000 {
		t.Fatalf("expected balance 4000, got %d", pl.balance)
	}
}

func TestRejectRefundsFullAmount(t *testing.T) {
	svc, pl, _ := newService(10_000, nil)
	userID := uuid.New()

	e, err := svc.Submit(context.Background(), userID, uuid.New(), 6000, "user@site")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	manager := exchange.Actor{ID: uuid.New(), Role: jwt.RoleManager}
	rejected, err := svc.Reject(context.Background(), e.ID, manager, "payout details invalid")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	if rejected.Status != exchange.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}
	if !rejected.ManagerID.Valid || rejected.ManagerID.UUID != manager.ID {
		t.Fatal("rejecting manager must be recorded")
	}
	if !rejected.RejectionReason.Valid || rejected.RejectionReason.String != "payout details invalid" {
		t.Fatal("rejection reason must be recorded")
	}

	refund := pl.calls[len(pl.calls)-1]
	if refund.delta != 6000 {
		t.Fatalf("expected refund of 6000, got %d", refund.delta)
	}
	if refund.meta.RequireSufficient {
		t.Fatal("refund must not require sufficiency")
	}
	if pl.balance != 10_000 {
		t.Fatalf("expected balance restored to 10000, got %d", pl.balance)
	}
}

func TestApproveDoesNotRefund(t *testing.T) {
	svc, pl, _ := newService(10_000, nil)

	e, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 6000, "user@site")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	approved, err := svc.Approve(context.Background(), e.ID, exchange.Actor{ID: uuid.New(), Role: jwt.RoleAdmin})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != exchange.StatusCompleted {
		t.Fatalf("expected completed, got %s", approved.Status)
	}
	if len(pl.calls) != 1 {
		t.Fatal("approval must not write any further ledger entries")
	}
	if pl.balance != 4000 {
		t.Fatalf("expected balance to remain 4000, got %d", pl.balance)
	}
}

func TestCancelByNonOwner(t *testing.T) {
	svc, _, _ := newService(10_000, nil)

	e, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 6000, "user@site")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	_, err = svc.Cancel(context.Background(), e.ID, uuid.New())
	if !errors.Is(err, exchange.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestTransitionOnTerminalExchange(t *testing.T) {
	svc, pl, _ := newService(10_000, nil)
	userID := uuid.New()

	e, err := svc.Submit(context.Background(), userID, uuid.New(), 6000, "user@site")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	admin := exchange.Actor{ID: uuid.New(), Role: jwt.RoleAdmin}
	if _, err := svc.Reject(context.Background(), e.ID, admin, ""); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	// A second reject must not double-refund.
	if _, err := svc.Reject(context.Background(), e.ID, admin, ""); !errors.Is(err, exchange.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if _, err = svc.Cancel(context.Background(), e.ID, userID); !errors.Is(err, exchange.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if pl.balance != 10_000 {
		t.Fatalf("expected balance 10000 after single refund, got %d", pl.balance)
	}
}

// A zero or negative unit in the config must not make the multiple check
// divide by zero; the constructor falls back to a unit of 1.
func TestNewServiceDefaultsNonPositiveUnit(t *testing.T) {
	pl := &fakeLedger{balance: 100_000}
	svc := exchange.NewService(fakeTx{}, newFakeStore(), pl, &fakeSites{}, nil, exchange.Config{
		MinPoints:  5000,
		UnitPoints: 0,
		Rate:       decimal.NewFromInt(1),
	})

	e, err := svc.Submit(context.Background(), uuid.New(), uuid.New(), 5001, "user@site")
	if err != nil {
		t.Fatalf("submit with defaulted unit: %v", err)
	}
	if e.PointsAmount != 5001 {
		t.Fatalf("expected points amount 5001, got %d", e.PointsAmount)
	}
}
