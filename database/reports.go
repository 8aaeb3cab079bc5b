package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"civicwatch/models"

	"github.com/go-sql-driver/mysql"
)

const (
	// DefaultListLimit bounds listings when the caller does not say.
	DefaultListLimit = 50
	// MaxListLimit caps a single page to prevent abuse.
	MaxListLimit = 500

	mysqlDuplicateEntry = 1062
)

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

const reportColumns = `id, type, title, description, location, state, category, tags,
	status, source_type, source_url, content_hash, view_count, appreciation_count, created_at`

func scanReport(row interface{ Scan(...interface{}) error }) (*models.Report, error) {
	var r models.Report
	var state, category, tags, sourceURL sql.NullString
	err := row.Scan(
		&r.ID, &r.Type, &r.Title, &r.Description, &r.Location,
		&state, &category, &tags,
		&r.Status, &r.SourceType, &sourceURL, &r.ContentHash,
		&r.ViewCount, &r.AppreciationCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.State = state.String
	r.Category = category.String
	r.Tags = tags.String
	r.SourceURL = sourceURL.String
	return &r, nil
}

// CreateReport inserts a new report. The store assigns the identifier and
// creation time; status starts as pending unless the caller set one, and
// both counters start at zero.
func (d *Database) CreateReport(ctx context.Context, r *models.Report) (*models.Report, error) {
	return d.createReport(ctx, d.db, r)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (d *Database) createReport(ctx context.Context, ex execer, r *models.Report) (*models.Report, error) {
	if r.Status == "" {
		r.Status = models.StatusPending
	}
	if r.SourceType == "" {
		r.SourceType = models.SourceUser
	}
	r.CreatedAt = time.Now().UTC()

	result, err := ex.ExecContext(ctx, `INSERT INTO reports
		(type, title, description, location, state, category, tags, status, source_type, source_url, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Type, r.Title, r.Description, r.Location,
		nullable(r.State), nullable(r.Category), nullable(r.Tags),
		r.Status, r.SourceType, nullable(r.SourceURL), r.ContentHash, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrDuplicateContent
		}
		return nil, fmt.Errorf("failed to insert report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get report id: %w", err)
	}
	r.ID = id
	r.ViewCount = 0
	r.AppreciationCount = 0
	return r, nil
}

// CreateReportWithSubmission atomically inserts a user report together with
// its provenance record. The submission is never mutated afterwards.
func (d *Database) CreateReportWithSubmission(ctx context.Context, r *models.Report, sub *models.Submission) (*models.Report, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, err := d.createReport(ctx, tx, r)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO submissions
		(report_id, submitted_by, email, is_anonymous, ip_address)
		VALUES (?, ?, ?, ?, ?)`,
		stored.ID, sub.SubmittedBy, sub.Email, sub.IsAnonymous, sub.IPAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submission: %w", err)
	}
	return stored, nil
}

// GetReportByID fetches a single report.
func (d *Database) GetReportByID(ctx context.Context, id int64) (*models.Report, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report %d: %w", id, err)
	}
	return r, nil
}

// IncrementViewCount bumps the view counter in a single UPDATE so that
// concurrent reads never lose increments.
func (d *Database) IncrementViewCount(ctx context.Context, id int64) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE reports SET view_count = view_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment view count for report %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check view count update for report %d: %w", id, err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReports returns a page of reports, newest first. The status filter
// defaults to verified: non-verified reports are never exposed through the
// generic listing path unless explicitly requested.
func (d *Database) ListReports(ctx context.Context, filters models.ListFilters) ([]models.Report, error) {
	status := filters.Status
	if status == "" {
		status = models.StatusVerified
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + reportColumns + ` FROM reports WHERE status = ?`
	args := []interface{}{status}

	if filters.State != "" {
		query += ` AND state = ?`
		args = append(args, filters.State)
	}
	if filters.Category != "" {
		query += ` AND category = ?`
		args = append(args, filters.Category)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	return d.queryReports(ctx, query, args...)
}

// GetFeedByType returns the latest verified reports for one feed topic.
func (d *Database) GetFeedByType(ctx context.Context, reportType string, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return d.queryReports(ctx,
		`SELECT `+reportColumns+` FROM reports
		 WHERE type = ? AND status = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		reportType, models.StatusVerified, limit)
}

func (d *Database) queryReports(ctx context.Context, query string, args ...interface{}) ([]models.Report, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	// Empty listings marshal as [], not null.
	reports := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// RecordAppreciation inserts an appreciation and increments the report's
// counter in one transaction. A repeat from the same address fails with
// ErrAlreadyAppreciated and leaves the count untouched.
func (d *Database) RecordAppreciation(ctx context.Context, reportID int64, ipAddress string) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO appreciations (report_id, ip_address) VALUES (?, ?)`,
		reportID, ipAddress)
	if err != nil {
		if isDuplicateEntry(err) {
			return 0, ErrAlreadyAppreciated
		}
		return 0, fmt.Errorf("failed to insert appreciation: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE reports SET appreciation_count = appreciation_count + 1 WHERE id = ?`,
		reportID)
	if err != nil {
		return 0, fmt.Errorf("failed to increment appreciation count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check appreciation update: %w", err)
	}
	if rows == 0 {
		return 0, ErrNotFound
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT appreciation_count FROM reports WHERE id = ?`, reportID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to read appreciation count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit appreciation: %w", err)
	}
	return count, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
