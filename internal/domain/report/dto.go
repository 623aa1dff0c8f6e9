package report

import "github.com/google/uuid"

// CreateRequest files a scam report against a site
type CreateRequest struct {
	SiteID      uuid.UUID `json:"site_id" validate:"required"`
	Reason      string    `json:"reason" validate:"required,report_reason"`
	Description string    `json:"description,omitempty" validate:"max=2000"`
}

// ResolveRequest closes a report with a verdict
type ResolveRequest struct {
	Action string `json:"action" validate:"required,oneof=confirm dismiss"`
	Notes  string `json:"notes,omitempty" validate:"max=1000"`
}
