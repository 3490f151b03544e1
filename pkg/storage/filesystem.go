package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage writes downloaded timetable exports under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes data to filename inside the base directory and returns the full
// path. Directory components in filename are dropped so a server-supplied name
// cannot escape the base directory.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.TrimSpace(filename)))
	if name == "/" || name == "." {
		return "", fmt.Errorf("invalid export file name %q", filename)
	}
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// Path exposes the location a file name would be written to.
func (s *LocalStorage) Path(filename string) string {
	return filepath.Join(s.baseDir, filepath.Base(filename))
}
