package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/siterank/siterank-api/internal/pkg/cursor"
)

// Service exposes read access to a user's ledger.
type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

// TransactionPage is one page of a user's transaction history.
type TransactionPage struct {
	Data       []Transaction
	NextCursor *string
	HasMore    bool
	Limit      int
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, token string, limit int) (*TransactionPage, error) {
	limit = cursor.ClampLimit(limit)

	var cur *cursor.Cursor
	if c, ok := cursor.Decode(token); ok {
		cur = &c
	}

	rows, err := s.store.ListTransactions(ctx, userID, cur, limit)
	if err != nil {
		return nil, err
	}

	page, hasMore := cursor.Trim(rows, limit)

	result := &TransactionPage{Data: page, HasMore: hasMore, Limit: limit}
	if hasMore {
		last := page[len(page)-1]
		token := cursor.Encode(last.ID, last.CreatedAt)
		result.NextCursor = &token
	}
	return result, nil
}
