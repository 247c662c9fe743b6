package services

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
)

// ProvenancePrefix starts every provenance line written to UserComment
const ProvenancePrefix = "RelativePath:"

const exifIfdPath = "IFD/Exif"

// MetadataService writes the provenance tag into a copy's EXIF UserComment
type MetadataService struct{}

// NewMetadataService creates a new MetadataService
func NewMetadataService() *MetadataService {
	return &MetadataService{}
}

// ReadUserComment returns the UserComment text of the file at path, or ""
// when the file carries none.
func (s *MetadataService) ReadUserComment(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	x, err := decodeExif(f)
	if err != nil {
		return "", nil
	}
	tag, err := x.Get(goexif.UserComment)
	if err != nil {
		return "", nil
	}
	return decodeUserComment(tag.Val), nil
}

// AppendProvenance appends "RelativePath:<relDir>" to the UserComment of
// the JPEG at path, keeping any comment already there. Files that are not
// .jpg are left alone and reported as not tagged.
func (s *MetadataService) AppendProvenance(log *observability.Logger, path, relDir string) (bool, error) {
	if !models.HasQualifyingExtension(path) {
		log.Infof("Skipping provenance tag for %s: %v", path, models.ErrUnsupportedTag)
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	sl, err := parseJpegSegments(data)
	if err != nil {
		return false, err
	}

	rootIb, err := exifRootBuilder(sl)
	if err != nil {
		return false, fmt.Errorf("load exif: %w", err)
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return false, fmt.Errorf("exif ifd: %w", err)
	}

	existing := ""
	if bt, err := exifIb.FindTagWithName("UserComment"); err == nil {
		existing = decodeUserComment(bt.Value().Bytes())
	}

	comment := ProvenanceComment(existing, relDir)
	uc := exifundefined.Tag9286UserComment{
		EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
		EncodingBytes: []byte(comment),
	}
	if err := exifIb.SetStandardWithName("UserComment", uc); err != nil {
		return false, fmt.Errorf("set UserComment: %w", err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return false, fmt.Errorf("set exif: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return false, fmt.Errorf("encode jpeg: %w", err)
	}

	if err := replaceFile(path, buf.Bytes()); err != nil {
		return false, err
	}

	log.Debugf("Tagged %s with %s%s", path, ProvenancePrefix, relDir)
	return true, nil
}

// ProvenanceComment returns existing with a provenance line for relDir
// appended on its own line.
func ProvenanceComment(existing, relDir string) string {
	line := ProvenancePrefix + relDir
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

// decodeUserComment strips the 8-byte character code and NUL padding
func decodeUserComment(raw []byte) string {
	if len(raw) >= 8 {
		raw = raw[8:]
	}
	return strings.TrimRight(string(raw), "\x00 ")
}

func parseJpegSegments(data []byte) (*jpegstructure.SegmentList, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, errors.New("parse jpeg: missing start-of-image marker")
	}
	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("parse jpeg: unexpected media context %T", intfc)
	}
	return sl, nil
}

// exifRootBuilder returns a builder preloaded with the file's EXIF, or an
// empty root IFD when the file has none.
func exifRootBuilder(sl *jpegstructure.SegmentList) (*exif.IfdBuilder, error) {
	if _, _, err := sl.FindExif(); err != nil {
		if !errors.Is(err, exif.ErrNoExif) {
			return nil, err
		}
		return newExifRootBuilder()
	}
	return sl.ConstructExifBuilder()
}

func newExifRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, err
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}
