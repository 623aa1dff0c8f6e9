package ledger

import "errors"

// ErrInsufficientPoints is returned when a sufficiency-required debit
// cannot be fully covered by the balance.
var ErrInsufficientPoints = errors.New("insufficient points")
