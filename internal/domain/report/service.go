package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/domain/reward"
	"github.com/siterank/siterank-api/internal/pkg/cursor"
	"github.com/siterank/siterank-api/internal/pkg/database"
)

// Resolve actions accepted from admins.
const (
	ActionConfirm = "confirm"
	ActionDismiss = "dismiss"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, rep *Report) error
	HasOpenReport(ctx context.Context, reporterID, siteID uuid.UUID) (bool, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Report, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, rep *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	ListByReporter(ctx context.Context, reporterID uuid.UUID, cur *cursor.Cursor, limit int) ([]Report, error)
	List(ctx context.Context, status Status, cur *cursor.Cursor, limit int) ([]Report, error)
}

// SiteChecker verifies the reported site exists.
type SiteChecker interface {
	CheckActive(ctx context.Context, id uuid.UUID) error
}

// Rewarder awards points inside an existing transaction scope.
type Rewarder interface {
	RewardInTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, settingKey, category string, opts reward.Options) (*ledger.Transaction, error)
}

// EventPublisher pushes report events to subscribers after commit.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

type Service struct {
	repo      Store
	sites     SiteChecker
	engine    Rewarder
	tx        database.TxRunner
	publisher EventPublisher
}

func NewService(repo Store, sites SiteChecker, engine Rewarder, tx database.TxRunner, publisher EventPublisher) *Service {
	return &Service{repo: repo, sites: sites, engine: engine, tx: tx, publisher: publisher}
}

// Page is one keyset page of reports.
type Page struct {
	Data       []Report `json:"data"`
	NextCursor *string  `json:"next_cursor,omitempty"`
	HasMore    bool     `json:"has_more"`
	Limit      int      `json:"limit"`
}

// Create files a new report. One open report per reporter and site at a
// time: repeated filings against the same site are rejected until the
// previous one is resolved.
func (s *Service) Create(ctx context.Context, reporterID, siteID uuid.UUID, reason Reason, description string) (*Report, error) {
	if err := s.sites.CheckActive(ctx, siteID); err != nil {
		return nil, err
	}

	open, err := s.repo.HasOpenReport(ctx, reporterID, siteID)
	if err != nil {
		return nil, fmt.Errorf("check open reports: %w", err)
	}
	if open {
		return nil, ErrDuplicateReport
	}

	rep := &Report{
		ID:         uuid.New(),
		ReporterID: reporterID,
		SiteID:     siteID,
		Reason:     reason,
		Status:     StatusPending,
	}
	if description != "" {
		rep.Description = sql.NullString{String: description, Valid: true}
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

// Resolve closes a pending or reviewing report. Confirming awards the
// reporter points through the reward engine in the same transaction, so the
// status change and the ledger entry commit or roll back together.
func (s *Service) Resolve(ctx context.Context, adminID, reportID uuid.UUID, action, notes string) (*Report, error) {
	var target Status
	switch action {
	case ActionConfirm:
		target = StatusResolved
	case ActionDismiss:
		target = StatusDismissed
	default:
		return nil, ErrInvalidAction
	}

	var resolved *Report
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		rep, err := s.repo.GetForUpdate(ctx, tx, reportID)
		if err != nil {
			return err
		}
		if rep.Status != StatusPending && rep.Status != StatusReviewing {
			return ErrAlreadyResolved
		}

		rep.Status = target
		rep.ResolvedBy = uuid.NullUUID{UUID: adminID, Valid: true}
		rep.ResolvedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		if notes != "" {
			rep.AdminNotes = sql.NullString{String: notes, Valid: true}
		}

		if target == StatusResolved {
			_, err := s.engine.RewardInTx(ctx, tx, rep.ReporterID, reward.SettingKeyReportApproved, "report_reward", reward.Options{
				Reference: &ledger.Ref{Type: "report", ID: rep.ID},
				Metadata:  map[string]interface{}{"site_id": rep.SiteID.String()},
			})
			if err != nil {
				return fmt.Errorf("reward reporter: %w", err)
			}
		}

		resolved = rep
		return s.repo.UpdateStatus(ctx, tx, rep)
	})
	if err != nil {
		return nil, err
	}

	s.publishAsync("report."+string(target), resolved)
	return resolved, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListMine(ctx context.Context, reporterID uuid.UUID, token string, limit int) (*Page, error) {
	limit = cursor.ClampLimit(limit)
	var cur *cursor.Cursor
	if c, ok := cursor.Decode(token); ok {
		cur = &c
	}

	rows, err := s.repo.ListByReporter(ctx, reporterID, cur, limit)
	if err != nil {
		return nil, err
	}
	return buildPage(rows, limit), nil
}

func (s *Service) List(ctx context.Context, status Status, token string, limit int) (*Page, error) {
	limit = cursor.ClampLimit(limit)
	var cur *cursor.Cursor
	if c, ok := cursor.Decode(token); ok {
		cur = &c
	}

	rows, err := s.repo.List(ctx, status, cur, limit)
	if err != nil {
		return nil, err
	}
	return buildPage(rows, limit), nil
}

func buildPage(rows []Report, limit int) *Page {
	page, hasMore := cursor.Trim(rows, limit)
	result := &Page{Data: page, HasMore: hasMore, Limit: limit}
	if hasMore && len(page) > 0 {
		last := page[len(page)-1]
		token := cursor.Encode(last.ID, last.CreatedAt)
		result.NextCursor = &token
	}
	return result
}

func (s *Service) publishAsync(topic string, rep *Report) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.publisher.Publish(ctx, topic, rep); err != nil {
			log.Error().Err(err).
				Str("topic", topic).
				Str("report_id", rep.ID.String()).
				Str("reporter_id", rep.ReporterID.String()).
				Msg("report event publish failed")
		}
	}()
}
