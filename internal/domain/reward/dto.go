package reward

import "github.com/google/uuid"

// UpsertSettingRequest creates or updates a reward setting
type UpsertSettingRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=255"`
	Point int64  `json:"point"`
}

// GrantRequest is an admin point adjustment
type GrantRequest struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	Points      int64     `json:"points"`
	Description string    `json:"description,omitempty" validate:"max=500"`
}
