package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStorage keeps one directory per session id under a base directory, with
// one file per key. Two terminals with different session ids never see each
// other's items.
type FileStorage struct {
	dir string
}

// NewFileStorage returns storage for sessionID rooted at baseDir.
func NewFileStorage(baseDir, sessionID string) (*FileStorage, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	dir := filepath.Join(baseDir, unsafeChars.ReplaceAllString(sessionID, "_"))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, unsafeChars.ReplaceAllString(key, "_")+".json")
}

func (f *FileStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read session item: %w", err)
	}
	return string(data), true, nil
}

// SetItem writes through a temporary file so a crash never leaves a torn value.
func (f *FileStorage) SetItem(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(f.dir, ".item-*")
	if err != nil {
		return fmt.Errorf("failed to write session item: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session item: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session item: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("failed to write session item: %w", err)
	}
	return nil
}

func (f *FileStorage) RemoveItem(_ context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session item: %w", err)
	}
	return nil
}
