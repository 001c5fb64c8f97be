// Package storage wraps the small set of filesystem operations the tool needs.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	DirPerm  fs.FileMode = 0o755
	FilePerm fs.FileMode = 0o644
)

type Storage struct{}

// SaveFile writes content to filePath, creating parent directories as needed.
// Existing files are overwritten in place.
func (s *Storage) SaveFile(filePath string, content []byte) error {
	if dir := filepath.Dir(filePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(filePath, content, FilePerm); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

// ReadFile reads filePath. The returned error wraps fs.ErrNotExist for missing files.
func (s *Storage) ReadFile(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// ReadFileOr returns fallback when filePath does not exist.
func (s *Storage) ReadFileOr(filePath string, fallback []byte) ([]byte, bool, error) {
	data, err := s.ReadFile(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fallback, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
