package reward

import (
	"context"
	"time"

	"github.com/siterank/siterank-api/internal/domain/ledger"
)

// Well-known setting keys.
const (
	SettingKeyAttendance     = "attendance"
	SettingKeyReportApproved = "report_approved"
)

// Setting is an admin-managed point configuration, looked up by key at
// reward time. A missing setting is not an error: the reward degenerates to
// a zero-point award that is still audited.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Name      string    `db:"name" json:"name"`
	Point     int64     `db:"point" json:"point"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SettingSource resolves setting keys. It is queried per call, never cached.
type SettingSource interface {
	// GetSetting returns nil (not an error) when the key is unknown.
	GetSetting(ctx context.Context, key string) (*Setting, error)
}

// Options tune a single reward application.
type Options struct {
	// OverridePoints replaces the setting's point value entirely.
	OverridePoints *int64

	// RequireSufficientPoints makes a negative resolved delta fail outright
	// instead of being capped at the available balance.
	RequireSufficientPoints bool

	Reference *ledger.Ref
	Metadata  map[string]interface{}
}
