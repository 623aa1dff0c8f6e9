// Package cursor implements opaque keyset pagination tokens.
//
// Lists on this platform are high churn; offset pagination would skip or
// duplicate rows when records are inserted between page fetches. Every list
// endpoint orders by (sort column DESC, id DESC) and pages through it with
// these tokens. The id tie-break keeps the order total even when timestamps
// collide.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50
)

// Cursor is the decoded position of the last row the client has seen.
type Cursor struct {
	ID        uuid.UUID `json:"id"`
	SortValue time.Time `json:"sort_value"`
}

// Encode produces an opaque token for the (sort value, id) pair.
func Encode(id uuid.UUID, sortValue time.Time) string {
	raw, _ := json.Marshal(Cursor{ID: id, SortValue: sortValue.UTC()})
	return base64.URLEncoding.EncodeToString(raw)
}

// Decode parses a token. A malformed token is reported as "no cursor", never
// as an error: callers fall back to the first page.
func Decode(token string) (Cursor, bool) {
	if token == "" {
		return Cursor{}, false
	}
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, false
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, false
	}
	if c.ID == uuid.Nil {
		return Cursor{}, false
	}
	return c, true
}

// ClampLimit normalizes a client-supplied page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Trim takes rows fetched with limit+1 and returns the page plus whether more
// rows exist. The extra row is dropped; the caller derives the next token
// from the last row of the returned page.
func Trim[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}
