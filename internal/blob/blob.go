package blob

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store reads and writes raw file content on the local filesystem, keyed
// by opaque paths it hands out. It knows nothing about metadata.
type Store struct {
	root string
}

// New creates the root directory if absent and returns a store over it.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{root: root}, nil
}

// NewPath generates a fresh opaque path under the store root. The path is
// assigned once at file creation and never reassigned.
func (s *Store) NewPath() string {
	return filepath.Join(s.root, uuid.NewString())
}

// Write stores data at path atomically: content lands in a temp file first
// and is renamed into place, so readers never observe partial blobs.
// Re-writing an existing path is a full overwrite.
func (s *Store) Write(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempFile.Name(), path)
}

// Open returns a reader over the blob at path.
func (s *Store) Open(path string) (*os.File, error) {
	return os.Open(path)
}

// Exists reports whether a blob is present at path.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// VariantPath derives the location of a resized variant from a primary
// blob path. Variants are a pure function of the primary path and width,
// not separate entities.
func VariantPath(path string, width int) string {
	return fmt.Sprintf("%s_%d", path, width)
}
