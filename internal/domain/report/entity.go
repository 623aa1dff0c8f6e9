package report

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Reason categorizes a scam report
type Reason string

const (
	ReasonScam        Reason = "scam"
	ReasonPayoutDelay Reason = "payout_delay"
	ReasonRigged      Reason = "rigged"
	ReasonOther       Reason = "other"
)

// Status represents the review state of a report
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Report is a user-submitted scam report against a partner site. A report
// confirmed by an admin awards the reporter points through the reward
// engine.
type Report struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	ReporterID  uuid.UUID      `db:"reporter_id" json:"reporter_id"`
	SiteID      uuid.UUID      `db:"site_id" json:"site_id"`
	Reason      Reason         `db:"reason" json:"reason"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	Status      Status         `db:"status" json:"status"`
	AdminNotes  sql.NullString `db:"admin_notes" json:"admin_notes,omitempty"`
	ResolvedBy  uuid.NullUUID  `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt  sql.NullTime   `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`

	SiteName string `db:"site_name" json:"site_name,omitempty"`
}

// OwnerID marks report events as belonging to the reporter.
func (r *Report) OwnerID() uuid.UUID {
	return r.ReporterID
}
