package services

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/djherbis/times"

	"github.com/photosync/photosort/internal/observability"
)

// StorageService lays copies out under root/YYYY/MM/DD
type StorageService struct {
	root string
}

// NewStorageService creates a StorageService rooted at root
func NewStorageService(root string) (*StorageService, error) {
	if root == "" {
		return nil, fmt.Errorf("output root cannot be empty")
	}
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &StorageService{root: absPath}, nil
}

// Root returns the absolute output root
func (s *StorageService) Root() string {
	return s.root
}

// EnsureRoot creates the output root if it is missing
func (s *StorageService) EnsureRoot(log *observability.Logger) error {
	created, err := ensureDir(s.root)
	if err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	if created {
		log.Infof("Created output folder %s", s.root)
	}
	return nil
}

// DestinationFolder returns the folder a photo captured at date belongs in
func (s *StorageService) DestinationFolder(date time.Time) string {
	return filepath.Join(s.root, date.Format("2006"), date.Format("01"), date.Format("02"))
}

// EnsureFolder creates the destination folder for date. A folder that
// already exists, including one created concurrently, is not an error.
func (s *StorageService) EnsureFolder(log *observability.Logger, date time.Time) (string, error) {
	folder := s.DestinationFolder(date)
	created, err := ensureDir(folder)
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", folder, err)
	}
	if created {
		log.Infof("Created folder %s", folder)
	}
	return folder, nil
}

// CopyPreserving copies src into dstDir under its own base name, replacing
// any file of the same name, and applies the source's permissions and
// access and modification times to the copy.
func (s *StorageService) CopyPreserving(src, dstDir string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dstDir, filepath.Base(src))

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	if err := applyFileMeta(dst, info); err != nil {
		return "", err
	}
	return dst, nil
}

// ensureDir reports whether this call created path. Only the leaf is
// created with Mkdir so that exactly one concurrent caller sees true.
func ensureDir(path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, err
	}

	err := os.Mkdir(path, 0755)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return false, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return false, statErr
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s exists and is not a directory", path)
	}
	return false, nil
}

// applyFileMeta sets the permissions and access/modification times of
// path from info.
func applyFileMeta(path string, info fs.FileInfo) error {
	if err := os.Chmod(path, info.Mode().Perm()); err != nil {
		return err
	}
	atime := times.Get(info).AccessTime()
	return os.Chtimes(path, atime, info.ModTime())
}

// replaceFile atomically replaces path with data, keeping its permissions
// and timestamps.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".photosort-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := applyFileMeta(tmpName, info); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
