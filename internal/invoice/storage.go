package invoice

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage defines the interface for file storage operations
type Storage interface {
	// Save saves a file and returns the stored filename
	Save(filename string, data []byte) (string, error)

	// Get retrieves a file by its stored filename
	Get(filename string) ([]byte, error)

	// Delete removes a file
	Delete(filename string) error

	// Path returns the filesystem path of a stored file
	Path(filename string) string
}

// LocalStorage implements the Storage interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save saves a file to local storage
func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	if err := os.WriteFile(l.Path(filename), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return filename, nil
}

// Get retrieves a file from local storage
func (l *LocalStorage) Get(filename string) ([]byte, error) {
	data, err := os.ReadFile(l.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage
func (l *LocalStorage) Delete(filename string) error {
	if err := os.Remove(l.Path(filename)); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Path implements Storage. Directory components of filename are dropped.
func (l *LocalStorage) Path(filename string) string {
	return filepath.Join(l.basePath, filepath.Base(filename))
}
