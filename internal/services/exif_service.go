package services

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/djherbis/times"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
)

const exifTimeLayout = "2006:01:02 15:04:05"

// EXIFService reads the capture date and orientation from JPEG metadata
type EXIFService struct{}

// NewEXIFService creates a new EXIFService
func NewEXIFService() *EXIFService {
	return &EXIFService{}
}

// ReadCaptureDate returns DateTimeOriginal of the file at path, parsed in
// local time.
func (s *EXIFService) ReadCaptureDate(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	return s.CaptureDateFrom(f)
}

// CaptureDateFrom returns DateTimeOriginal from an image stream
func (s *EXIFService) CaptureDateFrom(r io.Reader) (time.Time, error) {
	x, err := decodeExif(r)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", models.ErrNoCaptureDate, err)
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return time.Time{}, models.ErrNoCaptureDate
	}
	val, err := tag.StringVal()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", models.ErrNoCaptureDate, err)
	}

	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	tm, err := time.ParseInLocation(exifTimeLayout, val, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed DateTimeOriginal %q", models.ErrNoCaptureDate, val)
	}
	return tm, nil
}

// ReadOrientation returns the orientation field of the file at path.
// Files without metadata, or with a value outside 1..8, report 1.
func (s *EXIFService) ReadOrientation(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return s.OrientationFrom(data), nil
}

// OrientationFrom returns the orientation field of an encoded image
func (s *EXIFService) OrientationFrom(data []byte) int {
	x, err := decodeExif(bytes.NewReader(data))
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	val, err := tag.Int(0)
	if err != nil || val < 1 || val > 8 {
		return 1
	}
	return val
}

// decodeExif decodes the metadata of r. A broken GPS or interop sub-IFD
// still leaves the other fields readable, so only critical errors fail.
func decodeExif(r io.Reader) (*exif.Exif, error) {
	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, err
	}
	return x, nil
}

// DateResolver picks the best capture date available for a file
type DateResolver struct {
	exif *EXIFService
	now  func() time.Time
}

// NewDateResolver creates a resolver backed by exifService
func NewDateResolver(exifService *EXIFService) *DateResolver {
	return &DateResolver{exif: exifService, now: time.Now}
}

// Resolve never fails: the embedded capture date wins, then the
// filesystem creation time, then the change and modification times.
func (r *DateResolver) Resolve(log *observability.Logger, path string) models.CaptureDate {
	if tm, err := r.exif.ReadCaptureDate(path); err == nil {
		return models.CaptureDate{Time: tm, Source: models.DateSourceEXIF}
	}

	date := r.fromFilesystem(path)
	log.Warnf("Failed to read capture date from %s, using %s", path, date.Source)
	return date
}

func (r *DateResolver) fromFilesystem(path string) models.CaptureDate {
	ts, err := times.Stat(path)
	if err != nil {
		return models.CaptureDate{Time: r.now(), Source: models.DateSourceNow}
	}

	switch {
	case ts.HasBirthTime() && !ts.BirthTime().IsZero():
		return models.CaptureDate{Time: ts.BirthTime(), Source: models.DateSourceBirthTime}
	case ts.HasChangeTime() && !ts.ChangeTime().IsZero():
		return models.CaptureDate{Time: ts.ChangeTime(), Source: models.DateSourceChangeTime}
	default:
		return models.CaptureDate{Time: ts.ModTime(), Source: models.DateSourceModTime}
	}
}
