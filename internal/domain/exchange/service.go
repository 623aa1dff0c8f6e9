package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/siterank/siterank-api/internal/domain/ledger"
	"github.com/siterank/siterank-api/internal/pkg/cursor"
	"github.com/siterank/siterank-api/internal/pkg/database"
	"github.com/siterank/siterank-api/internal/pkg/jwt"
	"github.com/siterank/siterank-api/internal/pkg/metrics"
)

const (
	categoryExchange  = "point_exchange"
	referenceExchange = "exchange"
)

// PointLedger is the slice of the ledger store the workflow needs.
type PointLedger interface {
	ApplyDelta(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta int64, meta ledger.ApplyMeta) (*ledger.Applied, error)
}

// SiteChecker validates the destination site before any lock is taken.
type SiteChecker interface {
	CheckActive(ctx context.Context, id uuid.UUID) error
}

// EventPublisher receives post-commit notifications. Best effort: failures
// are logged by the caller and never retried.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// Store is the persistence surface of the workflow.
type Store interface {
	Create(ctx context.Context, tx *sqlx.Tx, e *Exchange) error
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Exchange, error)
	UpdateStatus(ctx context.Context, tx *sqlx.Tx, e *Exchange) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exchange, error)
	ListByUser(ctx context.Context, userID uuid.UUID, cur *cursor.Cursor, limit int) ([]Exchange, error)
	List(ctx context.Context, status Status, cur *cursor.Cursor, limit int) ([]Exchange, error)
}

// Config carries the exchange amount rules.
type Config struct {
	MinPoints  int64
	UnitPoints int64
	Rate       decimal.Decimal
}

// Service runs the exchange workflow state machine.
type Service struct {
	tx        database.TxRunner
	repo      Store
	ledger    PointLedger
	sites     SiteChecker
	publisher EventPublisher
	cfg       Config
}

func NewService(tx database.TxRunner, repo Store, pointLedger PointLedger, sites SiteChecker, publisher EventPublisher, cfg Config) *Service {
	// A non-positive unit would make the multiple check divide by zero.
	if cfg.UnitPoints <= 0 {
		cfg.UnitPoints = 1
	}
	if cfg.MinPoints < 0 {
		cfg.MinPoints = 0
	}
	return &Service{tx: tx, repo: repo, ledger: pointLedger, sites: sites, publisher: publisher, cfg: cfg}
}

// Submit validates the request, then atomically debits the balance with
// sufficiency required and creates the exchange in pending.
func (s *Service) Submit(ctx context.Context, userID, siteID uuid.UUID, pointsAmount int64, siteUserID string) (*Exchange, error) {
	// Pre-lock validation: fail fast without touching storage state.
	if pointsAmount <= 0 || pointsAmount%s.cfg.UnitPoints != 0 {
		return nil, ErrAmountNotMultiple
	}
	if pointsAmount < s.cfg.MinPoints {
		return nil, ErrAmountBelowMinimum
	}
	if err := s.sites.CheckActive(ctx, siteID); err != nil {
		return nil, err
	}

	e := &Exchange{
		ID:             uuid.New(),
		UserID:         userID,
		SiteID:         siteID,
		PointsAmount:   pointsAmount,
		CurrencyAmount: decimal.NewFromInt(pointsAmount).Mul(s.cfg.Rate),
		ExchangeRate:   s.cfg.Rate,
		SiteUserID:     siteUserID,
		Status:         StatusPending,
	}

	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		// The debit takes the balance row lock; the re-checked balance must
		// cover the full amount.
		_, err := s.ledger.ApplyDelta(ctx, tx, userID, -pointsAmount, ledger.ApplyMeta{
			Type:              ledger.TransactionTypeSpend,
			Category:          categoryExchange,
			Reference:         &ledger.Ref{Type: referenceExchange, ID: e.ID},
			Description:       "point exchange request",
			RequireSufficient: true,
		})
		if err != nil {
			return err
		}

		return s.repo.Create(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}

	metrics.ExchangeTransitions.WithLabelValues(string(StatusPending)).Inc()

	reloaded, err := s.reload(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("exchange_id", e.ID.String()).
		Int64("points", pointsAmount).
		Msg("exchange submitted")

	s.publishAsync("exchange.requested", reloaded)
	return reloaded, nil
}

// MoveToProcessing marks a pending exchange as being worked on.
func (s *Service) MoveToProcessing(ctx context.Context, id uuid.UUID, actor Actor) (*Exchange, error) {
	return s.transition(ctx, id, ActionProcess, actor, "")
}

// Approve completes the exchange. The submission debit stands.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor Actor) (*Exchange, error) {
	return s.transition(ctx, id, ActionApprove, actor, "")
}

// Reject refunds the full debited amount and records the reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor Actor, reason string) (*Exchange, error) {
	return s.transition(ctx, id, ActionReject, actor, reason)
}

// Cancel is the owner's counterpart of Reject; no reason required.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*Exchange, error) {
	return s.transition(ctx, id, ActionCancel, Actor{ID: userID, Role: jwt.RoleUser}, "")
}

// transition is the single path for every post-submit state change, so the
// allowed-from sets in the transition table cannot drift between call sites.
func (s *Service) transition(ctx context.Context, id uuid.UUID, action Action, actor Actor, reason string) (*Exchange, error) {
	var pointsAmount int64
	var userID uuid.UUID

	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		e, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if action == ActionCancel && e.UserID != actor.ID {
			return ErrNotOwner
		}
		if !CanTransition(e.Status, action) {
			return ErrAlreadyProcessed
		}

		e.Status = TargetStatus(action)
		now := time.Now()
		e.ProcessedAt = sql.NullTime{Time: now, Valid: true}
		switch actor.Role {
		case jwt.RoleManager:
			e.ManagerID = uuid.NullUUID{UUID: actor.ID, Valid: true}
		case jwt.RoleAdmin:
			e.AdminID = uuid.NullUUID{UUID: actor.ID, Valid: true}
		}
		if action == ActionReject && reason != "" {
			e.RejectionReason = sql.NullString{String: reason, Valid: true}
		}

		if action.refunds() {
			// The refund can never fail for balance reasons.
			_, err := s.ledger.ApplyDelta(ctx, tx, e.UserID, e.PointsAmount, ledger.ApplyMeta{
				Type:        ledger.TransactionTypeRefund,
				Category:    categoryExchange,
				Reference:   &ledger.Ref{Type: referenceExchange, ID: e.ID},
				Description: "point exchange " + string(e.Status),
			})
			if err != nil {
				return err
			}
		}

		pointsAmount = e.PointsAmount
		userID = e.UserID
		return s.repo.UpdateStatus(ctx, tx, e)
	})
	if err != nil {
		return nil, err
	}

	status := TargetStatus(action)
	metrics.ExchangeTransitions.WithLabelValues(string(status)).Inc()

	reloaded, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("exchange_id", id.String()).
		Str("user_id", userID.String()).
		Str("action", string(action)).
		Str("actor_id", actor.ID.String()).
		Int64("points", pointsAmount).
		Msg("exchange transition")

	s.publishAsync("exchange."+string(status), reloaded)
	return reloaded, nil
}

// reload re-reads the exchange with its associations for the response and
// notification payload. An empty result here is a consistency fault.
func (s *Service) reload(ctx context.Context, id uuid.UUID) (*Exchange, error) {
	e, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrExchangeNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrReloadInconsistent, id)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns one exchange. Non-moderators may only see their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor Actor) (*Exchange, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == jwt.RoleUser && e.UserID != actor.ID {
		return nil, ErrNotOwner
	}
	return e, nil
}

// Page is one page of exchanges.
type Page struct {
	Data       []Exchange
	NextCursor *string
	HasMore    bool
	Limit      int
}

func (s *Service) ListMine(ctx context.Context, userID uuid.UUID, token string, limit int) (*Page, error) {
	limit = cursor.ClampLimit(limit)
	cur := decodeCursor(token)

	rows, err := s.repo.ListByUser(ctx, userID, cur, limit)
	if err != nil {
		return nil, err
	}
	return buildPage(rows, limit), nil
}

func (s *Service) ListAll(ctx context.Context, status Status, token string, limit int) (*Page, error) {
	limit = cursor.ClampLimit(limit)
	cur := decodeCursor(token)

	rows, err := s.repo.List(ctx, status, cur, limit)
	if err != nil {
		return nil, err
	}
	return buildPage(rows, limit), nil
}

func decodeCursor(token string) *cursor.Cursor {
	if c, ok := cursor.Decode(token); ok {
		return &c
	}
	return nil
}

func buildPage(rows []Exchange, limit int) *Page {
	page, hasMore := cursor.Trim(rows, limit)
	result := &Page{Data: page, HasMore: hasMore, Limit: limit}
	if hasMore {
		last := page[len(page)-1]
		token := cursor.Encode(last.ID, last.CreatedAt)
		result.NextCursor = &token
	}
	return result
}

// publishAsync notifies after commit, outside the lock scope. Fire and
// forget: a failed publish is logged with enough context to reconstruct the
// missed event and never affects the committed operation.
func (s *Service) publishAsync(topic string, e *Exchange) {
	if s.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.publisher.Publish(ctx, topic, e); err != nil {
			log.Error().Err(err).
				Str("topic", topic).
				Str("exchange_id", e.ID.String()).
				Str("user_id", e.UserID.String()).
				Msg("exchange event publish failed")
		}
	}()
}
