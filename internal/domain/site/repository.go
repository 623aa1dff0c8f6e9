package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/siterank/siterank-api/internal/pkg/cursor"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, s *Site) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sites (id, name, url, category, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Name, s.URL, s.Category, s.Description, s.Active, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create site: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Site, error) {
	var s Site
	err := r.db.GetContext(ctx, &s, `
		SELECT id, name, url, category, description, active, created_at, updated_at
		FROM sites WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Update(ctx context.Context, s *Site) error {
	s.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE sites
		SET name = $2, url = $3, category = $4, description = $5, active = $6, updated_at = $7
		WHERE id = $1
	`, s.ID, s.Name, s.URL, s.Category, s.Description, s.Active, s.UpdatedAt)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSiteNotFound
	}
	return nil
}

// List pages active sites newest-first.
func (r *Repository) List(ctx context.Context, cur *cursor.Cursor, limit int) ([]Site, error) {
	sites := make([]Site, 0, limit+1)

	if cur != nil {
		err := r.db.SelectContext(ctx, &sites, `
			SELECT id, name, url, category, description, active, created_at, updated_at
			FROM sites
			WHERE active = true AND (created_at, id) < ($1, $2)
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		`, cur.SortValue, cur.ID, limit+1)
		return sites, err
	}

	err := r.db.SelectContext(ctx, &sites, `
		SELECT id, name, url, category, description, active, created_at, updated_at
		FROM sites
		WHERE active = true
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit+1)
	return sites, err
}

// CheckActive verifies the site exists and is active. Used by the exchange
// workflow as pre-lock validation.
func (r *Repository) CheckActive(ctx context.Context, id uuid.UUID) error {
	var active bool
	err := r.db.GetContext(ctx, &active, `SELECT active FROM sites WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSiteNotFound
	}
	if err != nil {
		return err
	}
	if !active {
		return ErrSiteInactive
	}
	return nil
}
