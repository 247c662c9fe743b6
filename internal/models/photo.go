package models

import (
	"path/filepath"
	"strings"
	"time"
)

// QualifyingExtension is the only extension the sorter copies.
const QualifyingExtension = ".jpg"

// MinQualifyingSize is the exclusive lower bound on a qualifying file's size.
const MinQualifyingSize int64 = 100 * 1024

// DateSource records where a capture date came from
type DateSource string

const (
	DateSourceEXIF       DateSource = "exif"
	DateSourceBirthTime  DateSource = "birth_time"
	DateSourceChangeTime DateSource = "change_time"
	DateSourceModTime    DateSource = "mod_time"
	DateSourceNow        DateSource = "now"
)

// CaptureDate is the best-known capture date of a photo
type CaptureDate struct {
	Time   time.Time  `json:"time"`
	Source DateSource `json:"source"`
}

// FromMetadata reports whether the date was read from embedded metadata
func (c CaptureDate) FromMetadata() bool {
	return c.Source == DateSourceEXIF
}

// HasQualifyingExtension reports whether name ends in .jpg, ignoring case
func HasQualifyingExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), QualifyingExtension)
}

// IsQualifying reports whether a file with the given name and size is
// eligible for sorting.
func IsQualifying(name string, size int64) bool {
	return HasQualifyingExtension(name) && size > MinQualifyingSize
}

// Errors
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrEmptySourcePath = PhotoError{"source path cannot be empty"}
	ErrEmptyOutputPath = PhotoError{"output path cannot be empty"}
	ErrNotADirectory   = PhotoError{"path is not a directory"}
	ErrNotQualifying   = PhotoError{"file is not a qualifying photo"}
	ErrNoCaptureDate   = PhotoError{"no capture date in metadata"}
	ErrTruncatedImage  = PhotoError{"image is truncated or corrupt"}
	ErrUnsupportedTag  = PhotoError{"file format not supported for tagging"}
	ErrTaskPanicked    = PhotoError{"worker task panicked"}
)
