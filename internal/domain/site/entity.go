package site

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Site is a partner site listed in the directory. Exchange requests convert
// points into currency on one of these sites.
type Site struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	URL         string         `db:"url" json:"url"`
	Category    string         `db:"category" json:"category"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	Active      bool           `db:"active" json:"active"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}
