package reward

import "errors"

var (
	// ErrAlreadyClaimed is returned when the daily attendance reward was
	// already claimed during the current UTC day.
	ErrAlreadyClaimed = errors.New("attendance already claimed today")

	ErrInvalidGrant = errors.New("grant points must be non-zero")
)
