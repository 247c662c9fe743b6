package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	"github.com/disintegration/imaging"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
)

// OrientationService rewrites a JPEG so that its pixels are upright
type OrientationService struct {
	exif    *EXIFService
	quality int
}

// NewOrientationService creates an OrientationService encoding at quality
func NewOrientationService(exifService *EXIFService, quality int) *OrientationService {
	return &OrientationService{
		exif:    exifService,
		quality: quality,
	}
}

// Correct rotates the file at path according to its orientation field and
// reports whether it was rewritten. Only 3, 6 and 8 are handled. The image
// is fully decoded first, so a truncated file is rejected untouched.
func (s *OrientationService) Correct(ctx context.Context, log *observability.Logger, path string) (bool, error) {
	ctx, span := observability.StartServiceSpan(ctx, "OrientationService", "Correct", observability.FilePath(path))
	defer span.End()

	data, err := os.ReadFile(path)
	if err != nil {
		observability.RecordError(span, err)
		return false, err
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		err = fmt.Errorf("%w: %v", models.ErrTruncatedImage, err)
		observability.RecordError(span, err)
		return false, err
	}

	orientation := s.exif.OrientationFrom(data)
	rotated, ok := rotateForOrientation(img, orientation)
	if !ok {
		log.Debugf("No rotation needed for %s (orientation %d)", path, orientation)
		observability.SetSuccess(span)
		return false, nil
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, rotated, imaging.JPEG, imaging.JPEGQuality(s.quality)); err != nil {
		observability.RecordError(span, err)
		return false, fmt.Errorf("encode rotated image: %w", err)
	}

	out, err := carryExif(data, buf.Bytes())
	if err != nil {
		log.Warnf("Could not carry metadata across rotation of %s: %v", path, err)
		out = buf.Bytes()
	}

	if err := replaceFile(path, out); err != nil {
		observability.RecordError(span, err)
		return false, err
	}

	log.Infof("Rotated %s (orientation %d)", path, orientation)
	observability.SetSuccess(span)
	return true, nil
}

// rotateForOrientation returns img turned upright for orientation 3, 6 or
// 8. Mirrored orientations are not handled.
func rotateForOrientation(img image.Image, orientation int) (image.Image, bool) {
	switch orientation {
	case 3:
		return imaging.Rotate180(img), true
	case 6:
		// 90 clockwise
		return imaging.Rotate270(img), true
	case 8:
		return imaging.Rotate90(img), true
	default:
		return img, false
	}
}

// carryExif copies the EXIF block of original onto the re-encoded image
// with the orientation field reset to 1.
func carryExif(original, encoded []byte) ([]byte, error) {
	src, err := parseJpegSegments(original)
	if err != nil {
		return nil, err
	}
	if _, _, err := src.FindExif(); err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return encoded, nil
		}
		return nil, err
	}

	rootIb, err := src.ConstructExifBuilder()
	if err != nil {
		return nil, err
	}
	if err := rootIb.SetStandardWithName("Orientation", []uint16{1}); err != nil {
		return nil, err
	}

	dst, err := parseJpegSegments(encoded)
	if err != nil {
		return nil, err
	}
	if err := dst.SetExif(rootIb); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dst.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
