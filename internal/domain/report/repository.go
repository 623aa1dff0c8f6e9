package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/siterank/siterank-api/internal/pkg/cursor"
)

const reportColumns = `r.id, r.reporter_id, r.site_id, r.reason, r.description, r.status,
	r.admin_notes, r.resolved_by, r.resolved_at, r.created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, rep *Report) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO scam_reports (id, reporter_id, site_id, reason, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`, rep.ID, rep.ReporterID, rep.SiteID, string(rep.Reason), rep.Description, string(rep.Status)).
		Scan(&rep.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReport
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// HasOpenReport reports whether the user already has a pending or reviewing
// report against the site.
func (r *Repository) HasOpenReport(ctx context.Context, reporterID, siteID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM scam_reports
			WHERE reporter_id = $1 AND site_id = $2 AND status IN ('pending', 'reviewing')
		)
	`, reporterID, siteID)
	return exists, err
}

// GetForUpdate locks a report row for resolution, so two admins cannot
// resolve the same report concurrently.
func (r *Repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Report, error) {
	var rep Report
	err := tx.GetContext(ctx, &rep, `
		SELECT `+reportColumns+`
		FROM scam_reports r
		WHERE r.id = $1
		FOR UPDATE OF r
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock report: %w", err)
	}
	return &rep, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, tx *sqlx.Tx, rep *Report) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE scam_reports
		SET status = $2, admin_notes = $3, resolved_by = $4, resolved_at = $5
		WHERE id = $1
	`, rep.ID, string(rep.Status), rep.AdminNotes, rep.ResolvedBy, rep.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	var rep Report
	err := r.db.GetContext(ctx, &rep, `
		SELECT `+reportColumns+`, s.name AS site_name
		FROM scam_reports r
		JOIN sites s ON s.id = r.site_id
		WHERE r.id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rep, nil
}

func (r *Repository) ListByReporter(ctx context.Context, reporterID uuid.UUID, cur *cursor.Cursor, limit int) ([]Report, error) {
	reports := make([]Report, 0, limit+1)

	if cur != nil {
		err := r.db.SelectContext(ctx, &reports, `
			SELECT `+reportColumns+`, s.name AS site_name
			FROM scam_reports r
			JOIN sites s ON s.id = r.site_id
			WHERE r.reporter_id = $1 AND (r.created_at, r.id) < ($2, $3)
			ORDER BY r.created_at DESC, r.id DESC
			LIMIT $4
		`, reporterID, cur.SortValue, cur.ID, limit+1)
		return reports, err
	}

	err := r.db.SelectContext(ctx, &reports, `
		SELECT `+reportColumns+`, s.name AS site_name
		FROM scam_reports r
		JOIN sites s ON s.id = r.site_id
		WHERE r.reporter_id = $1
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2
	`, reporterID, limit+1)
	return reports, err
}

func (r *Repository) List(ctx context.Context, status Status, cur *cursor.Cursor, limit int) ([]Report, error) {
	reports := make([]Report, 0, limit+1)

	query := `
		SELECT ` + reportColumns + `, s.name AS site_name
		FROM scam_reports r
		JOIN sites s ON s.id = r.site_id
		WHERE 1=1`
	args := make([]interface{}, 0, 4)
	idx := 1

	if status != "" {
		query += fmt.Sprintf(" AND r.status = $%d", idx)
		args = append(args, string(status))
		idx++
	}
	if cur != nil {
		query += fmt.Sprintf(" AND (r.created_at, r.id) < ($%d, $%d)", idx, idx+1)
		args = append(args, cur.SortValue, cur.ID)
		idx += 2
	}

	query += fmt.Sprintf(" ORDER BY r.created_at DESC, r.id DESC LIMIT $%d", idx)
	args = append(args, limit+1)

	err := r.db.SelectContext(ctx, &reports, query, args...)
	return reports, err
}
