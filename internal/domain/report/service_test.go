package report_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/domain/report"
	"github.com/siterank/siterank-api/internal/domain/reward"
	"github.com/siterank/siterank-api/internal/domain/site"
	"github.com/siterank/siterank-api/internal/pkg/cursor"
)

type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type fakeStore struct {
	rows      map[uuid.UUID]*report.Report
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*report.Report)}
}

func (f *fakeStore) Create(ctx context.Context, rep *report.Report) error {
	if f.createErr != nil {
		return f.createErr
	}
	clone := *rep
	f.rows[rep.ID] = &clone
	return nil
}

func (f *fakeStore) HasOpenReport(ctx context.Context, reporterID, siteID uuid.UUID) (bool, error) {
	for _, rep := range f.rows {
		open := rep.Status == report.StatusPending || rep.Status == report.StatusReviewing
		if open && rep.ReporterID == reporterID && rep.SiteID == siteID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*report.Report, error) {
	rep, ok := f.rows[id]
	if !ok {
		return nil, report.ErrReportNotFound
	}
	clone := *rep
	return &clone, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, tx *sqlx.Tx, rep *report.Report) error {
	clone := *rep
	f.rows[rep.ID] = &clone
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*report.Report, error) {
	return f.GetForUpdate(ctx, nil, id)
}

func (f *fakeStore) ListByReporter(ctx context.Context, reporterID uuid.UUID, cur *cursor.Cursor, limit int) ([]report.Report, error) {
	return nil, nil
}

func (f *fakeStore) List(ctx context.Context, status report.Status, cur *cursor.Cursor, limit int) ([]report.Report, error) {
	return nil, nil
}

type fakeSites struct {
	err error
}

func (f *fakeSites) CheckActive(ctx context.Context, id uuid.UUID) error {
	return f.err
}

type rewardCall struct {
	userID     uuid.UUID
	settingKey string
	opts       reward.Options
}

type fakeRewarder struct {
	calls []rewardCall
}

func (f *fakeRewarder) RewardInTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, settingKey, category string, opts reward.Options) (*ledger.Transaction, error) {
	f.calls = append(f.calls, rewardCall{userID: userID, settingKey: settingKey, opts: opts})
	return &ledger.Transaction{ID: uuid.New(), UserID: userID}, nil
}

func newService(siteErr error) (*report.Service, *fakeStore, *fakeRewarder) {
	store := newFakeStore()
	rewarder := &fakeRewarder{}
	svc := report.NewService(store, &fakeSites{err: siteErr}, rewarder, fakeTx{}, nil)
	return svc, store, rewarder
}

func TestCreateReport(t *testing.T) {
	svc, store, _ := newService(nil)
	reporterID := uuid.New()

	rep, err := svc.Create(context.Background(), reporterID, uuid.New(), report.ReasonScam, "took my payout")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if rep.Status != report.StatusPending {
		t.Fatalf("expected pending, got %s", rep.Status)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected 1 stored report, got %d", len(store.rows))
	}
}

func TestCreateReportUnknownSite(t *testing.T) {
	svc, _, _ := newService(site.ErrSiteNotFound)

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), report.ReasonScam, "")
	if !errors.Is(err, site.ErrSiteNotFound) {
		t.Fatalf("expected ErrSiteNotFound, got %v", err)
	}
}

func TestCreateDuplicateOpenReport(t *testing.T) {
	svc, _, _ := newService(nil)
	reporterID := uuid.New()
	siteID := uuid.New()

	if _, err := svc.Create(context.Background(), reporterID, siteID, report.ReasonScam, ""); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := svc.Create(context.Background(), reporterID, siteID, report.ReasonRigged, "")
	if !errors.Is(err, report.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport, got %v", err)
	}
}

// Two concurrent filings can both pass the open-report check; the second
// insert then hits the unique partial index and the mapped error must
// surface unchanged.
func TestCreateDuplicateCaughtAtInsert(t *testing.T) {
	svc, store, _ := newService(nil)
	store.createErr = report.ErrDuplicateReport

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), report.ReasonScam, "")
	if !errors.Is(err, report.ErrDuplicateReport) {
		t.Fatalf("expected ErrDuplicateReport from insert, got %v", err)
	}
}

func TestResolveConfirmAwardsReporter(t *testing.T) {
	svc, _, rewarder := newService(nil)
	reporterID := uuid.New()
	adminID := uuid.New()

	rep, err := svc.Create(context.Background(), reporterID, uuid.New(), report.ReasonScam, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), adminID, rep.ID, report.ActionConfirm, "verified")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if resolved.Status != report.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if !resolved.ResolvedBy.Valid || resolved.ResolvedBy.UUID != adminID {
		t.Fatal("resolving admin must be recorded")
	}

	if len(rewarder.calls) != 1 {
		t.Fatalf("expected 1 reward call, got %d", len(rewarder.calls))
	}
	call := rewarder.calls[0]
	if call.userID != reporterID {
		t.Fatal("reward must go to the reporter")
	}
	if call.settingKey != reward.SettingKeyReportApproved {
		t.Fatalf("expected report_approved setting, got %s", call.settingKey)
	}
	if call.opts.Reference == nil || call.opts.Reference.ID != rep.ID {
		t.Fatal("reward must reference the report")
	}
}

func TestResolveDismissDoesNotAward(t *testing.T) {
	svc, _, rewarder := newService(nil)

	rep, err := svc.Create(context.Background(), uuid.New(), uuid.New(), report.ReasonOther, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	dismissed, err := svc.Resolve(context.Background(), uuid.New(), rep.ID, report.ActionDismiss, "")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if dismissed.Status != report.StatusDismissed {
		t.Fatalf("expected dismissed, got %s", dismissed.Status)
	}
	if len(rewarder.calls) != 0 {
		t.Fatal("dismissal must not award points")
	}
}

func TestResolveTwice(t *testing.T) {
	svc, _, rewarder := newService(nil)

	rep, err := svc.Create(context.Background(), uuid.New(), uuid.New(), report.ReasonScam, "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := svc.Resolve(context.Background(), uuid.New(), rep.ID, report.ActionConfirm, ""); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// A second resolution must not double-award.
	_, err = svc.Resolve(context.Background(), uuid.New(), rep.ID, report.ActionConfirm, "")
	if !errors.Is(err, report.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if len(rewarder.calls) != 1 {
		t.Fatalf("expected exactly 1 reward call, got %d", len(rewarder.calls))
	}
}

func TestResolveInvalidAction(t *testing.T) {
	svc, _, _ := newService(nil)

	_, err := svc.Resolve(context.Background(), uuid.New(), uuid.New(), "escalate", "")
	if !errors.Is(err, report.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}
