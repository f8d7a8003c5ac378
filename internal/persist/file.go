package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

const (
	dirPerms = 0o750
)

// Files stores each key as one JSON file under a directory. Writes go
// through an atomic rename so a crash never leaves a torn list on disk.
type Files struct {
	dir string
}

// NewFiles creates the directory if needed and returns a file-backed store.
func NewFiles(dir string) (*Files, error) {
	if dir == "" {
		return nil, errors.New("open file store: directory is empty")
	}

	clean := filepath.Clean(dir)

	err := os.MkdirAll(clean, dirPerms)
	if err != nil {
		return nil, fmt.Errorf("open file store: create directory: %w", err)
	}

	return &Files{dir: clean}, nil
}

// ReadList loads the list stored under key. A missing file is an empty list.
func (f *Files) ReadList(ctx context.Context, key string) ([]string, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	path, err := f.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read list %q: %w", key, err)
	}

	var values []string

	err = json.Unmarshal(data, &values)
	if err != nil {
		return nil, fmt.Errorf("read list %q: decode: %w", key, err)
	}

	return values, nil
}

// WriteList atomically replaces the list stored under key.
func (f *Files) WriteList(ctx context.Context, key string, values []string) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	path, err := f.path(key)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("write list %q: encode: %w", key, err)
	}

	err = atomic.WriteFile(path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("write list %q: %w", key, err)
	}

	return nil
}

// path maps a key to its backing file, rejecting keys that would escape the
// store directory.
func (f *Files) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid persistence key %q", key)
	}

	return filepath.Join(f.dir, key+".json"), nil
}
