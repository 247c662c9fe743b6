package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashService computes content hashes for the run manifest
type HashService struct{}

// NewHashService creates a new HashService
func NewHashService() *HashService {
	return &HashService{}
}

// ComputeHash computes the SHA256 hash of a reader
func (s *HashService) ComputeHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeFileHash computes the SHA256 hash of the file at path
func (s *HashService) ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.ComputeHash(f)
}
