package ledger

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeEarn   TransactionType = "earn"
	TransactionTypeSpend  TransactionType = "spend"
	TransactionTypeRefund TransactionType = "refund"
)

// Balance is a user's current point balance. It is mutated only through
// Store.ApplyDelta and is never negative.
type Balance struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Points    int64     `db:"points" json:"points"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable, append-only ledger row. Folding Amount in
// (created_at, id) order from zero reproduces every BalanceAfter snapshot.
type Transaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	Type          TransactionType `db:"type" json:"type"`
	Amount        int64           `db:"amount" json:"amount"`
	BalanceAfter  int64           `db:"balance_after" json:"balance_after"`
	Category      string          `db:"category" json:"category"`
	ReferenceType sql.NullString  `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   uuid.NullUUID   `db:"reference_id" json:"reference_id,omitempty"`
	Description   string          `db:"description" json:"description"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Ref points a transaction at the entity that caused it.
type Ref struct {
	Type string
	ID   uuid.UUID
}

// ApplyMeta describes a single balance mutation.
type ApplyMeta struct {
	// Type of the resulting transaction. Leave empty to classify by the
	// applied amount: earn for >= 0, spend for < 0.
	Type        TransactionType
	Category    string
	Reference   *Ref
	Description string

	// Metadata is an opaque key-value bag stored on the transaction. When
	// non-nil the store merges in the computed audit fields: balance before
	// and after, requested and applied points, and points_were_capped.
	Metadata map[string]interface{}

	// RequireSufficient makes a negative delta fail with
	// ErrInsufficientPoints instead of clamping the balance at zero.
	RequireSufficient bool
}

// Applied is the outcome of one ApplyDelta call.
type Applied struct {
	NewBalance  int64
	Requested   int64
	Amount      int64 // actually applied; differs from Requested when capped
	Capped      bool
	Transaction *Transaction
}
