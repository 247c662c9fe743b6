package repository

import (
	"context"

	"github.com/photosync/photosort/internal/models"
)

// ManifestRepo defines the interface for run manifest persistence
type ManifestRepo interface {
	CreateRun(ctx context.Context, run *models.SortRun) error
	FinishRun(ctx context.Context, run *models.SortRun) error
	GetRun(ctx context.Context, id string) (*models.SortRun, error)
	AddFile(ctx context.Context, entry *models.ManifestEntry) error
	ListFiles(ctx context.Context, runID string) ([]*models.ManifestEntry, error)
	CountByStatus(ctx context.Context, runID string) (map[models.FileStatus]int, error)
}

var (
	_ ManifestRepo = (*ManifestRepository)(nil)
	_ ManifestRepo = (*ManifestRepositoryPostgres)(nil)
)
