package memory

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the memory document in a single file. A missing file
// loads as an empty document.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the document.
func (s *FileStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Save writes the document, creating parent directories as needed.
func (s *FileStore) Save(_ context.Context, doc string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(doc), 0o644)
}
