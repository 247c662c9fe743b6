package services

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	exif "github.com/dsoprea/go-exif/v3"
	exifundefined "github.com/dsoprea/go-exif/v3/undefined"
	"github.com/stretchr/testify/require"

	"github.com/photosync/photosort/internal/observability"
)

// testExif describes the metadata injected into a fixture JPEG
type testExif struct {
	DateTimeOriginal string
	Orientation      int
	UserComment      string
}

// noiseJPEG encodes a w x h image of random pixels. Noise compresses
// badly, so 400x300 at quality 95 is well over 100 KiB.
func noiseJPEG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// splitJPEG encodes a w x h image whose left half is red and right half blue
func splitJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.RGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.RGBA{B: 255, A: 255})
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

// withExif returns data with an EXIF block built from meta
func withExif(t *testing.T, data []byte, meta testExif) []byte {
	t.Helper()

	sl, err := parseJpegSegments(data)
	require.NoError(t, err)

	rootIb, err := newExifRootBuilder()
	require.NoError(t, err)

	if meta.Orientation != 0 {
		require.NoError(t, rootIb.SetStandardWithName("Orientation", []uint16{uint16(meta.Orientation)}))
	}

	if meta.DateTimeOriginal != "" || meta.UserComment != "" {
		exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
		require.NoError(t, err)

		if meta.DateTimeOriginal != "" {
			require.NoError(t, exifIb.SetStandardWithName("DateTimeOriginal", meta.DateTimeOriginal))
		}
		if meta.UserComment != "" {
			require.NoError(t, exifIb.SetStandardWithName("UserComment", exifundefined.Tag9286UserComment{
				EncodingType:  exifundefined.TagUndefinedType_9286_UserComment_Encoding_ASCII,
				EncodingBytes: []byte(meta.UserComment),
			}))
		}
	}

	require.NoError(t, sl.SetExif(rootIb))

	var buf bytes.Buffer
	require.NoError(t, sl.Write(&buf))
	return buf.Bytes()
}

// withBrokenGPSExif inserts a hand-built APP1 segment carrying dateTime in
// the Exif IFD, orientation in IFD0 and a GPS pointer past the end of the
// block, the way some phones write it.
func withBrokenGPSExif(t *testing.T, data []byte, dateTime string, orientation uint16) []byte {
	t.Helper()
	require.Len(t, dateTime, 19)
	require.True(t, len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8)

	be := binary.BigEndian
	entry := func(tag, typ uint16, count, value uint32) []byte {
		e := make([]byte, 12)
		be.PutUint16(e[0:], tag)
		be.PutUint16(e[2:], typ)
		be.PutUint32(e[4:], count)
		be.PutUint32(e[8:], value)
		return e
	}

	const (
		ifd0Offset  = 8
		exifOffset  = ifd0Offset + 2 + 3*12 + 4
		valueOffset = exifOffset + 2 + 12 + 4
	)

	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2a")
	binary.Write(&tiff, be, uint32(ifd0Offset))

	binary.Write(&tiff, be, uint16(3))
	tiff.Write(entry(0x0112, 3, 1, uint32(orientation)<<16))
	tiff.Write(entry(0x8769, 4, 1, exifOffset))
	tiff.Write(entry(0x8825, 4, 1, 0xFFF0))
	binary.Write(&tiff, be, uint32(0))

	binary.Write(&tiff, be, uint16(1))
	tiff.Write(entry(0x9003, 2, 20, valueOffset))
	binary.Write(&tiff, be, uint32(0))

	tiff.WriteString(dateTime)
	tiff.WriteByte(0)

	var out bytes.Buffer
	out.Write(data[:2])
	out.Write([]byte{0xFF, 0xE1})
	binary.Write(&out, be, uint16(2+6+tiff.Len()))
	out.WriteString("Exif\x00\x00")
	out.Write(tiff.Bytes())
	out.Write(data[2:])
	return out.Bytes()
}

func writeTestFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// newBufferLogger returns a debug logger writing into the returned buffer
func newBufferLogger() (*observability.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	logger := observability.NewLogger("test", observability.LevelDebug)
	logger.SetOutput(buf)
	return logger, buf
}

// syncBuffer is a bytes.Buffer safe for the concurrent writers of a worker pool
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
