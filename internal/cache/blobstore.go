package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore keeps response bodies on disk addressed by their SHA-256 hash.
// Identical bodies cached under different URLs or namespaces are stored once.
type BlobStore struct {
	baseDir string
}

// NewBlobStore creates a BlobStore rooted at baseDir.
func NewBlobStore(baseDir string) *BlobStore {
	return &BlobStore{baseDir: baseDir}
}

// HashBody returns the hex SHA-256 of data.
func HashBody(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store writes data and returns its hash.
// Bodies live at baseDir/{hash[0:2]}/{hash[2:4]}/{hash}.
func (s *BlobStore) Store(data []byte) (string, error) {
	hash := HashBody(data)

	dir := filepath.Join(s.baseDir, hash[0:2], hash[2:4])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}

	// Write to a temp file first so a crash never leaves a truncated blob under its hash.
	tmp, err := os.CreateTemp(dir, hash+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return hash, nil
}

// Retrieve reads a body and verifies it still matches its hash.
func (s *BlobStore) Retrieve(hash string) ([]byte, error) {
	if len(hash) < 4 {
		return nil, fmt.Errorf("invalid hash %q", hash)
	}

	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content not found: %w", err)
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	if got := HashBody(data); got != hash {
		return nil, fmt.Errorf("hash mismatch: expected %s, got %s", hash, got)
	}
	return data, nil
}

// Delete removes a body. Missing bodies are not an error.
func (s *BlobStore) Delete(hash string) error {
	if len(hash) < 4 {
		return nil
	}

	path := s.path(hash)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	// Prune empty fan-out directories; non-empty ones fail harmlessly.
	dir := filepath.Dir(path)
	os.Remove(dir)
	os.Remove(filepath.Dir(dir))

	return nil
}

// Exists reports whether a body is stored.
func (s *BlobStore) Exists(hash string) bool {
	if len(hash) < 4 {
		return false
	}
	_, err := os.Stat(s.path(hash))
	return err == nil
}

func (s *BlobStore) path(hash string) string {
	return filepath.Join(s.baseDir, hash[0:2], hash[2:4], hash)
}
