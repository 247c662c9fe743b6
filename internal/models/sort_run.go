package models

import (
	"time"

	"github.com/google/uuid"
)

// FileStatus is the outcome of sorting a single file
type FileStatus string

const (
	FileStatusCopied    FileStatus = "copied"
	FileStatusSkipped   FileStatus = "skipped"
	FileStatusFailed    FileStatus = "failed"
	FileStatusCancelled FileStatus = "cancelled"
)

// FileResult describes what happened to one source file
type FileResult struct {
	SourcePath  string      `json:"sourcePath"`
	DestPath    string      `json:"destPath,omitempty"`
	RelativeDir string      `json:"relativeDir,omitempty"`
	CaptureDate CaptureDate `json:"captureDate"`
	FileSize    int64       `json:"fileSize"`
	FileHash    string      `json:"fileHash,omitempty"`
	Rotated     bool        `json:"rotated"`
	Tagged      bool        `json:"tagged"`
	Status      FileStatus  `json:"status"`
	Error       string      `json:"error,omitempty"`
	ProcessedAt time.Time   `json:"processedAt"`
}

// RunSummary aggregates the results of a sort run
type RunSummary struct {
	Discovered int       `json:"discovered"`
	Qualifying int       `json:"qualifying"`
	Copied     int       `json:"copied"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Cancelled  int       `json:"cancelled"`
	Panicked   int       `json:"panicked"`
	Rotated    int       `json:"rotated"`
	Tagged     int       `json:"tagged"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Add folds a single file result into the summary
func (s *RunSummary) Add(r FileResult) {
	switch r.Status {
	case FileStatusCopied:
		s.Qualifying++
		s.Copied++
	case FileStatusFailed:
		s.Qualifying++
		s.Failed++
	case FileStatusCancelled:
		s.Cancelled++
	default:
		s.Skipped++
	}
	if r.Rotated {
		s.Rotated++
	}
	if r.Tagged {
		s.Tagged++
	}
}

// SortRun is the manifest record of one invocation
type SortRun struct {
	ID         string     `json:"id"`
	SourcePath string     `json:"sourcePath"`
	OutputPath string     `json:"outputPath"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// NewSortRun creates a new SortRun with validation
func NewSortRun(sourcePath, outputPath string) (*SortRun, error) {
	if sourcePath == "" {
		return nil, ErrEmptySourcePath
	}
	if outputPath == "" {
		return nil, ErrEmptyOutputPath
	}

	return &SortRun{
		ID:         uuid.New().String(),
		SourcePath: sourcePath,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC(),
	}, nil
}

// ManifestEntry is the manifest record of one processed file
type ManifestEntry struct {
	ID          string     `json:"id"`
	RunID       string     `json:"runId"`
	SourcePath  string     `json:"sourcePath"`
	DestPath    string     `json:"destPath"`
	RelativeDir string     `json:"relativeDir"`
	CaptureDate time.Time  `json:"captureDate"`
	DateSource  DateSource `json:"dateSource"`
	FileSize    int64      `json:"fileSize"`
	FileHash    string     `json:"fileHash"`
	Rotated     bool       `json:"rotated"`
	Tagged      bool       `json:"tagged"`
	Status      FileStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	ProcessedAt time.Time  `json:"processedAt"`
}

// NewManifestEntry converts a file result into a manifest entry for runID
func NewManifestEntry(runID string, r FileResult) *ManifestEntry {
	return &ManifestEntry{
		ID:          uuid.New().String(),
		RunID:       runID,
		SourcePath:  r.SourcePath,
		DestPath:    r.DestPath,
		RelativeDir: r.RelativeDir,
		CaptureDate: r.CaptureDate.Time,
		DateSource:  r.CaptureDate.Source,
		FileSize:    r.FileSize,
		FileHash:    r.FileHash,
		Rotated:     r.Rotated,
		Tagged:      r.Tagged,
		Status:      r.Status,
		Error:       r.Error,
		ProcessedAt: r.ProcessedAt,
	}
}
