package exchange

import "github.com/google/uuid"

// SubmitRequest creates an exchange request
type SubmitRequest struct {
	SiteID       uuid.UUID `json:"site_id" validate:"required"`
	PointsAmount int64     `json:"points_amount" validate:"required,gt=0"`
	SiteUserID   string    `json:"site_user_id" validate:"required,min=1,max=255"`
}

// RejectRequest rejects an exchange with an optional reason
type RejectRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// ListQuery filters the admin exchange list
type ListQuery struct {
	Status string `json:"status" validate:"exchange_status"`
}
