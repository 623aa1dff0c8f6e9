package exchange

import "errors"

var (
	// ErrExchangeNotFound is returned when the exchange does not exist
	ErrExchangeNotFound = errors.New("exchange not found")

	// ErrAlreadyProcessed is returned for a transition attempted from a
	// state outside its allowed-from set
	ErrAlreadyProcessed = errors.New("exchange already processed")

	// ErrNotOwner is returned when a user cancels someone else's exchange
	ErrNotOwner = errors.New("exchange belongs to another user")

	// ErrAmountBelowMinimum is returned when points_amount is below the
	// configured minimum
	ErrAmountBelowMinimum = errors.New("points amount is below the minimum exchange amount")

	// ErrAmountNotMultiple is returned when points_amount is not a positive
	// multiple of the configured unit
	ErrAmountNotMultiple = errors.New("points amount must be a positive multiple of the exchange unit")

	// ErrReloadInconsistent signals that an exchange vanished between the
	// committed transition and the response reload. This is a consistency
	// fault, never a normal not-found.
	ErrReloadInconsistent = errors.New("exchange missing after transition")
)
