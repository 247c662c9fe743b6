package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
	"github.com/photosync/photosort/internal/repository"
)

// SortStatus represents the progress of the current or last sort run
type SortStatus struct {
	Running    bool      `json:"running"`
	RunID      string    `json:"runId,omitempty"`
	SourcePath string    `json:"sourcePath,omitempty"`
	OutputPath string    `json:"outputPath,omitempty"`
	Workers    int       `json:"workers"`
	Total      int       `json:"total"`
	Done       int       `json:"done"`
	Copied     int       `json:"copied"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Cancelled  int       `json:"cancelled"`
	Progress   float64   `json:"progress"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	Duration   string    `json:"duration,omitempty"`
}

type processFunc func(ctx context.Context, log *observability.Logger, root, path string) models.FileResult

// SorterService copies qualifying photos into the dated output tree using
// a fixed pool of workers.
type SorterService struct {
	log         *observability.Logger
	workers     int
	scanner     *ScannerService
	resolver    *DateResolver
	storage     *StorageService
	orientation *OrientationService
	metadata    *MetadataService
	hash        *HashService
	manifest    repository.ManifestRepo
	metrics     *observability.SortMetrics
	process     processFunc

	mu      sync.RWMutex
	status  SortStatus
	summary models.RunSummary
	run     *models.SortRun
}

// NewSorterService creates a new SorterService
func NewSorterService(
	log *observability.Logger,
	workers int,
	scanner *ScannerService,
	resolver *DateResolver,
	storage *StorageService,
	orientation *OrientationService,
	metadata *MetadataService,
	hash *HashService,
) *SorterService {
	if workers <= 0 {
		workers = 30
	}

	s := &SorterService{
		log:         log,
		workers:     workers,
		scanner:     scanner,
		resolver:    resolver,
		storage:     storage,
		orientation: orientation,
		metadata:    metadata,
		hash:        hash,
		status:      SortStatus{Workers: workers},
	}
	s.process = s.ProcessFile
	return s
}

// SetManifest enables recording of runs and files in repo
func (s *SorterService) SetManifest(repo repository.ManifestRepo) {
	s.manifest = repo
}

// SetMetrics sets the metric instruments updated per file
func (s *SorterService) SetMetrics(metrics *observability.SortMetrics) {
	s.metrics = metrics
}

// GetStatus returns the current sort status
func (s *SorterService) GetStatus() SortStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Sort discovers every file below sourceRoot and processes them all. The
// returned error is non-nil only when the run could not start or a worker
// task panicked; per-file failures are reported in the summary.
func (s *SorterService) Sort(ctx context.Context, sourceRoot string) (models.RunSummary, error) {
	ctx, span := observability.StartServiceSpan(ctx, "SorterService", "Sort", observability.FilePath(sourceRoot))
	defer span.End()

	if err := s.storage.EnsureRoot(s.log); err != nil {
		observability.RecordError(span, err)
		return models.RunSummary{}, err
	}

	files, err := s.scanner.Discover(ctx, sourceRoot)
	if err != nil {
		observability.RecordError(span, err)
		return models.RunSummary{}, fmt.Errorf("discover %s: %w", sourceRoot, err)
	}

	run := s.beginRun(ctx, sourceRoot)

	summary, runErr := s.Run(ctx, sourceRoot, files)

	s.finishRun(ctx, run, summary)

	s.log.WithFields(map[string]interface{}{
		"discovered": summary.Discovered,
		"qualifying": summary.Qualifying,
		"copied":     summary.Copied,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	}).Infof("Sort finished in %s", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	if summary.Cancelled > 0 {
		s.log.Warnf("Run interrupted, %d files were not processed", summary.Cancelled)
	}

	if runErr != nil {
		observability.RecordError(span, runErr)
	} else {
		observability.SetSuccess(span)
	}
	return summary, runErr
}

// Run processes files on the worker pool and waits for all of them. Every
// task runs behind a recover boundary, so one panicking file neither stops
// the other workers nor skips the remaining files.
func (s *SorterService) Run(ctx context.Context, sourceRoot string, files []string) (models.RunSummary, error) {
	s.mu.Lock()
	s.summary = models.RunSummary{Discovered: len(files), StartedAt: time.Now()}
	s.status.Running = true
	s.status.SourcePath = sourceRoot
	s.status.OutputPath = s.storage.Root()
	s.status.Total = len(files)
	s.status.Done = 0
	s.status.Copied = 0
	s.status.Skipped = 0
	s.status.Failed = 0
	s.status.Cancelled = 0
	s.status.Progress = 0
	s.status.StartedAt = s.summary.StartedAt
	s.status.Duration = ""
	s.mu.Unlock()

	jobs := make(chan string, len(files))
	for _, f := range files {
		jobs <- f
	}
	close(jobs)

	var wg sync.WaitGroup
	for id := 1; id <= s.workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.worker(ctx, id, sourceRoot, jobs)
		}(id)
	}
	wg.Wait()

	s.mu.Lock()
	s.summary.FinishedAt = time.Now()
	summary := s.summary
	s.status.Running = false
	s.status.Progress = 100
	s.status.Duration = summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()
	s.mu.Unlock()

	if summary.Panicked > 0 {
		return summary, fmt.Errorf("%w: %d of %d files", models.ErrTaskPanicked, summary.Panicked, len(files))
	}
	return summary, nil
}

func (s *SorterService) worker(ctx context.Context, id int, sourceRoot string, jobs <-chan string) {
	log := s.log.WithField("worker", id)

	for path := range jobs {
		if ctx.Err() != nil {
			s.record(ctx, models.FileResult{
				SourcePath:  path,
				Status:      models.FileStatusCancelled,
				ProcessedAt: time.Now(),
			}, false, 0)
			continue
		}

		taskCtx, span := observability.StartServiceSpan(ctx, "SorterService", "Task",
			observability.FilePath(path), observability.WorkerID(id))

		s.metrics.WorkerBusy(ctx, 1)
		start := time.Now()
		result, panicked := s.safeProcess(taskCtx, log, sourceRoot, path)
		s.metrics.WorkerBusy(ctx, -1)
		elapsed := time.Since(start)

		span.SetAttributes(observability.Duration(elapsed))
		if panicked {
			observability.RecordError(span, models.ErrTaskPanicked)
		}
		span.End()

		s.record(ctx, result, panicked, elapsed)
	}
}

func (s *SorterService) safeProcess(ctx context.Context, log *observability.Logger, sourceRoot, path string) (result models.FileResult, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Task for %s panicked: %v\n%s", path, r, debug.Stack())
			result = models.FileResult{
				SourcePath:  path,
				Status:      models.FileStatusFailed,
				Error:       fmt.Sprintf("panic: %v", r),
				ProcessedAt: time.Now(),
			}
			panicked = true
		}
	}()
	return s.process(ctx, log, sourceRoot, path), false
}

// record folds a result into the summary and status, then writes it to
// the manifest. Manifest failures never fail the file.
func (s *SorterService) record(ctx context.Context, result models.FileResult, panicked bool, duration time.Duration) {
	s.mu.Lock()
	s.summary.Add(result)
	if panicked {
		s.summary.Panicked++
	}
	s.status.Done++
	switch result.Status {
	case models.FileStatusCopied:
		s.status.Copied++
	case models.FileStatusFailed:
		s.status.Failed++
	case models.FileStatusCancelled:
		s.status.Cancelled++
	default:
		s.status.Skipped++
	}
	if s.status.Total > 0 {
		s.status.Progress = float64(s.status.Done) / float64(s.status.Total) * 100
	}
	run := s.run
	s.mu.Unlock()

	s.metrics.RecordFile(ctx, string(result.Status), result.FileSize, result.Rotated, duration)

	if s.manifest == nil || run == nil {
		return
	}
	if err := s.manifest.AddFile(context.WithoutCancel(ctx), models.NewManifestEntry(run.ID, result)); err != nil {
		s.log.Warnf("Failed to record %s in manifest: %v", result.SourcePath, err)
	}
}

// ProcessFile runs the pipeline for a single file: qualify, resolve the
// capture date, create the dated folder, copy, then correct orientation
// and tag the copy. A failure before the copy exists ends the pipeline;
// orientation and tagging failures are logged and the copy is kept.
func (s *SorterService) ProcessFile(ctx context.Context, log *observability.Logger, sourceRoot, path string) models.FileResult {
	ctx, span := observability.StartServiceSpan(ctx, "SorterService", "ProcessFile", observability.FilePath(path))
	defer span.End()
	log = log.WithContext(ctx)

	result := models.FileResult{SourcePath: path}
	done := func(status models.FileStatus, err error) models.FileResult {
		result.Status = status
		result.ProcessedAt = time.Now()
		if err != nil {
			result.Error = err.Error()
			observability.RecordError(span, err)
		} else {
			observability.SetSuccess(span)
		}
		return result
	}
	fail := func(step string, err error) models.FileResult {
		log.Errorf("Error processing %s during %s: %v", path, step, err)
		observability.AddEvent(span, "step failed", observability.Operation(step))
		return done(models.FileStatusFailed, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail("stat", err)
	}
	result.FileSize = info.Size()

	if !models.IsQualifying(filepath.Base(path), info.Size()) {
		log.Debugf("Skipping %s (%d bytes)", path, info.Size())
		result.Error = models.ErrNotQualifying.Error()
		return done(models.FileStatusSkipped, nil)
	}

	if err := ctx.Err(); err != nil {
		return done(models.FileStatusCancelled, err)
	}

	result.CaptureDate = s.resolver.Resolve(log, path)

	folder, err := s.storage.EnsureFolder(log, result.CaptureDate.Time)
	if err != nil {
		return fail("create folder", err)
	}

	if err := ctx.Err(); err != nil {
		return done(models.FileStatusCancelled, err)
	}

	if s.manifest != nil {
		if hash, err := s.hash.ComputeFileHash(path); err != nil {
			log.Warnf("Failed to hash %s: %v", path, err)
		} else {
			result.FileHash = hash
		}
	}

	dest, err := s.storage.CopyPreserving(path, folder)
	if err != nil {
		return fail("copy", err)
	}
	result.DestPath = dest
	log.Infof("Copied %s to %s", path, dest)
	observability.AddEvent(span, "copied", observability.Operation("copy"))

	// The copy exists from here on; finish it even if the run is interrupted.
	ctx = context.WithoutCancel(ctx)

	rotated, err := s.orientation.Correct(ctx, log, dest)
	if err != nil {
		log.Errorf("Error correcting orientation of %s: %v", dest, err)
	}
	result.Rotated = rotated

	relDir, err := filepath.Rel(sourceRoot, filepath.Dir(path))
	if err != nil {
		relDir = filepath.Dir(path)
	}
	result.RelativeDir = filepath.ToSlash(relDir)

	tagged, err := s.metadata.AppendProvenance(log, dest, result.RelativeDir)
	if err != nil {
		log.Errorf("Error adding provenance tag to %s: %v", dest, err)
	}
	result.Tagged = tagged

	return done(models.FileStatusCopied, nil)
}

func (s *SorterService) beginRun(ctx context.Context, sourceRoot string) *models.SortRun {
	run, err := models.NewSortRun(sourceRoot, s.storage.Root())
	if err != nil {
		s.log.Warnf("Failed to create run record: %v", err)
		return nil
	}

	if s.manifest != nil {
		if err := s.manifest.CreateRun(ctx, run); err != nil {
			s.log.Warnf("Failed to record run in manifest: %v", err)
			run = nil
		}
	}

	s.mu.Lock()
	s.run = run
	if run != nil {
		s.status.RunID = run.ID
	}
	s.mu.Unlock()
	return run
}

func (s *SorterService) finishRun(ctx context.Context, run *models.SortRun, summary models.RunSummary) {
	if run == nil {
		return
	}
	finished := summary.FinishedAt
	run.FinishedAt = &finished
	run.Summary = summary

	if s.manifest == nil {
		return
	}
	if err := s.manifest.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		s.log.Warnf("Failed to finish run %s in manifest: %v", run.ID, err)
		return
	}
	s.log.Infof("Run %s recorded in manifest", run.ID)
}
