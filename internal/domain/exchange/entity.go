package exchange

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the workflow state of an exchange request
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// Action is a workflow transition
type Action string

const (
	ActionProcess Action = "process"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// transitions is the single source of truth for allowed-from sets. Every
// call site consults it through CanTransition, so the sets cannot drift.
var transitions = map[Action]struct {
	from []Status
	to   Status
}{
	ActionProcess: {from: []Status{StatusPending}, to: StatusProcessing},
	ActionApprove: {from: []Status{StatusPending, StatusProcessing}, to: StatusCompleted},
	ActionReject:  {from: []Status{StatusPending, StatusProcessing}, to: StatusRejected},
	ActionCancel:  {from: []Status{StatusPending, StatusProcessing}, to: StatusCancelled},
}

// CanTransition reports whether action is allowed from the given status.
func CanTransition(from Status, action Action) bool {
	t, ok := transitions[action]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == from {
			return true
		}
	}
	return false
}

// TargetStatus returns the status an action transitions into.
func TargetStatus(action Action) Status {
	return transitions[action].to
}

// refunds reports whether the action compensates the submission debit.
// Completion does not: the debit stands.
func (a Action) refunds() bool {
	return a == ActionReject || a == ActionCancel
}

// Exchange is a points-to-partner-currency conversion request. Created in
// pending by a user submission, which also debits the balance; only
// rejection and cancellation refund it.
type Exchange struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	SiteID          uuid.UUID       `db:"site_id" json:"site_id"`
	PointsAmount    int64           `db:"points_amount" json:"points_amount"`
	CurrencyAmount  decimal.Decimal `db:"currency_amount" json:"currency_amount"`
	ExchangeRate    decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`
	SiteUserID      string          `db:"site_user_id" json:"site_user_id"`
	Status          Status          `db:"status" json:"status"`
	AdminID         uuid.NullUUID   `db:"admin_id" json:"admin_id,omitempty"`
	ManagerID       uuid.NullUUID   `db:"manager_id" json:"manager_id,omitempty"`
	ProcessedAt     sql.NullTime    `db:"processed_at" json:"processed_at,omitempty"`
	RejectionReason sql.NullString  `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`

	// SiteName is populated by joined reads for response payloads.
	SiteName string `db:"site_name" json:"site_name,omitempty"`
}

// OwnerID marks exchange events as belonging to the requesting user for
// realtime delivery.
func (e *Exchange) OwnerID() uuid.UUID {
	return e.UserID
}

// Actor is whoever drives a transition.
type Actor struct {
	ID   uuid.UUID
	Role string
}
