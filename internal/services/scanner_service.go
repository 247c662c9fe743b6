package services

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
)

// ScannerService discovers the files below a source root
type ScannerService struct {
	log *observability.Logger
}

// NewScannerService creates a new ScannerService
func NewScannerService(log *observability.Logger) *ScannerService {
	return &ScannerService{log: log}
}

// Discover walks root and returns the absolute path of every regular file
// beneath it, whatever its extension. Unreadable entries are skipped.
func (s *ScannerService) Discover(ctx context.Context, root string) ([]string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ScannerService", "Discover", observability.FilePath(root))
	defer span.End()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !info.IsDir() {
		err := fmt.Errorf("%w: %s", models.ErrNotADirectory, absRoot)
		observability.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	var files []string

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.log.Warnf("Skipping unreadable entry %s: %v", path, err)
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			if path == absRoot {
				return err
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Stat(path); err == nil && target.Mode().IsRegular() {
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	s.log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Infof("Discovered %d files under %s", len(files), absRoot)
	observability.SetSuccess(span)
	return files, nil
}
