package repository

import (
	"context"
	"database/sql"

	"github.com/photosync/photosort/internal/models"
)

// ManifestRepositoryPostgres handles run manifest persistence for PostgreSQL
type ManifestRepositoryPostgres struct {
	db *sql.DB
}

// NewManifestRepositoryPostgres creates a new ManifestRepositoryPostgres
func NewManifestRepositoryPostgres(db *sql.DB) *ManifestRepositoryPostgres {
	return &ManifestRepositoryPostgres{db: db}
}

// CreateRun inserts a new run
func (r *ManifestRepositoryPostgres) CreateRun(ctx context.Context, run *models.SortRun) error {
	query := `
		INSERT INTO sort_runs (id, source_path, output_path, started_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, run.ID, run.SourcePath, run.OutputPath, run.StartedAt)
	return err
}

// FinishRun stores the final summary and finish time of a run
func (r *ManifestRepositoryPostgres) FinishRun(ctx context.Context, run *models.SortRun) error {
	query := `
		UPDATE sort_runs SET finished_at = $1, discovered = $2, qualifying = $3, copied = $4,
			skipped = $5, failed = $6, cancelled = $7, panicked = $8, rotated = $9, tagged = $10
		WHERE id = $11
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
func (r *ManifestRepositoryPostgres) GetRun(ctx context.Context, id string) (*models.SortRun, error) {
	query := `
		SELECT id, source_path, output_path, started_at, finished_at, discovered, qualifying,
			copied, skipped, failed, cancelled, panicked, rotated, tagged
		FROM sort_runs WHERE id = $1
	`
	return scanRun(r.db.QueryRowContext(ctx, query, id))
}

// AddFile records the outcome of one file
func (r *ManifestRepositoryPostgres) AddFile(ctx context.Context, e *models.ManifestEntry) error {
	query := `
		INSERT INTO manifest_entries (id, run_id, source_path, dest_path, relative_dir, capture_date,
			date_source, file_size, file_hash, rotated, tagged, status, error, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.SourcePath, e.DestPath, e.RelativeDir, nullTime(&e.CaptureDate),
		string(e.DateSource), e.FileSize, e.FileHash, e.Rotated, e.Tagged, string(e.Status),
		e.Error, e.ProcessedAt,
	)
	return err
}

// ListFiles returns every entry of a run ordered by source path
func (r *ManifestRepositoryPostgres) ListFiles(ctx context.Context, runID string) ([]*models.ManifestEntry, error) {
	query := `
		SELECT id, run_id, source_path, dest_path, relative_dir, capture_date, date_source,
			file_size, file_hash, rotated, tagged, status, error, processed_at
		FROM manifest_entries WHERE run_id = $1
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
func (r *ManifestRepositoryPostgres) CountByStatus(ctx context.Context, runID string) (map[models.FileStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM manifest_entries WHERE run_id = $1 GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCounts(rows)
}
