package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/photosync/photosort/internal/models"
)

// ManifestRepository handles run manifest persistence for SQLite
type ManifestRepository struct {
	db *sql.DB
}

// NewManifestRepository creates a new ManifestRepository
func NewManifestRepository(db *sql.DB) *ManifestRepository {
	return &ManifestRepository{db: db}
}

// CreateRun inserts a new run
func (r *ManifestRepository) CreateRun(ctx context.Context, run *models.SortRun) error {
	query := `
		INSERT INTO sort_runs (id, source_path, output_path, started_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.SourcePath, run.OutputPath, run.StartedAt)
	return err
}

// FinishRun stores the final summary and finish time of a run
func (r *ManifestRepository) FinishRun(ctx context.Context, run *models.SortRun) error {
	query := `
		UPDATE sort_runs SET finished_at = ?, discovered = ?, qualifying = ?, copied = ?,
			skipped = ?, failed = ?, cancelled = ?, panicked = ?, rotated = ?, tagged = ?
		WHERE id = ?
	`
	s := run.Summary
	_, err := r.db.ExecContext(ctx, query,
		nullTime(run.FinishedAt), s.Discovered, s.Qualifying, s.Copied,
		s.Skipped, s.Failed, s.Cancelled, s.Panicked, s.Rotated, s.Tagged,
		run.ID,
	)
	return err
}

// GetRun retrieves a run by its ID
func (r *ManifestRepository) GetRun(ctx context.Context, id string) (*models.SortRun, error) {
	query := `
		SELECT id, source_path, output_path, started_at, finished_at, discovered, qualifying,
			copied, skipped, failed, cancelled, panicked, rotated, tagged
		FROM sort_runs WHERE id = ?
	`
	return scanRun(r.db.QueryRowContext(ctx, query, id))
}

// AddFile records the outcome of one file
func (r *ManifestRepository) AddFile(ctx context.Context, e *models.ManifestEntry) error {
	query := `
		INSERT INTO manifest_entries (id, run_id, source_path, dest_path, relative_dir, capture_date,
			date_source, file_size, file_hash, rotated, tagged, status, error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.SourcePath, e.DestPath, e.RelativeDir, nullTime(&e.CaptureDate),
		string(e.DateSource), e.FileSize, e.FileHash, e.Rotated, e.Tagged, string(e.Status),
		e.Error, e.ProcessedAt,
	)
	return err
}

// ListFiles returns every entry of a run ordered by source path
func (r *ManifestRepository) ListFiles(ctx context.Context, runID string) ([]*models.ManifestEntry, error) {
	query := `
		SELECT id, run_id, source_path, dest_path, relative_dir, capture_date, date_source,
			file_size, file_hash, rotated, tagged, status, error, processed_at
		FROM manifest_entries WHERE run_id = ?
		ORDER BY source_path
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// CountByStatus returns the number of entries of a run per status
func (r *ManifestRepository) CountByStatus(ctx context.Context, runID string) (map[models.FileStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM manifest_entries WHERE run_id = ? GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCounts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.SortRun, error) {
	var run models.SortRun
	var finishedAt sql.NullTime
	s := &run.Summary

	err := row.Scan(
		&run.ID,
		&run.SourcePath,
		&run.OutputPath,
		&run.StartedAt,
		&finishedAt,
		&s.Discovered,
		&s.Qualifying,
		&s.Copied,
		&s.Skipped,
		&s.Failed,
		&s.Cancelled,
		&s.Panicked,
		&s.Rotated,
		&s.Tagged,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.StartedAt = run.StartedAt
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
		s.FinishedAt = finishedAt.Time
	}
	return &run, nil
}

func scanEntries(rows *sql.Rows) ([]*models.ManifestEntry, error) {
	entries := []*models.ManifestEntry{}
	for rows.Next() {
		var e models.ManifestEntry
		var captureDate sql.NullTime
		var dateSource, status string
		if err := rows.Scan(
			&e.ID,
			&e.RunID,
			&e.SourcePath,
			&e.DestPath,
			&e.RelativeDir,
			&captureDate,
			&dateSource,
			&e.FileSize,
			&e.FileHash,
			&e.Rotated,
			&e.Tagged,
			&status,
			&e.Error,
			&e.ProcessedAt,
		); err != nil {
			return nil, err
		}
		if captureDate.Valid {
			e.CaptureDate = captureDate.Time
		}
		e.DateSource = models.DateSource(dateSource)
		e.Status = models.FileStatus(status)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func scanCounts(rows *sql.Rows) (map[models.FileStatus]int, error) {
	counts := make(map[models.FileStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[models.FileStatus(status)] = n
	}
	return counts, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
