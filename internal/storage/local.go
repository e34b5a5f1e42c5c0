package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes artifacts to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}
	return &LocalStore{baseDir: baseDir, prefix: prefix}, nil
}

// Store writes the artifact atomically using temp file + rename and returns
// its file:// URI.
func (s *LocalStore) Store(ctx context.Context, data []byte, ref ArtifactRef) (string, error) {
	key := ref.Key(s.prefix)
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create directory %s: %v", ErrStoreUnavailable, dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("%w: write temp file %s: %v", ErrStoreUnavailable, tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("%w: rename %s: %v", ErrStoreUnavailable, path, err)
	}

	return s.URI(key), nil
}

// Exists checks if the artifact already exists.
func (s *LocalStore) Exists(ctx context.Context, ref ArtifactRef) (bool, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(ref.Key(s.prefix)))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	absPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	return "file://" + absPath
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}
