package watermark

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileStore keeps the watermark as the first line of a text file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the text file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Close is a no-op; the file is only open during Load and Commit.
func (s *FileStore) Close() error {
	return nil
}

// Commit replaces the file with a single line holding value.
// The line is written to a temp file in the same directory, synced, then renamed
// over the target, so a reader never sees a partially written value.
func (s *FileStore) Commit(_ context.Context, value uint64) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", s.path, err)
	}

	tmpPath := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(strconv.FormatUint(value, 10) + "\n"); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil { //nolint:gosec // Watermark is not secret
		return fmt.Errorf("failed to set mode on %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	committed = true

	syncDir(dir)

	return nil
}

// Load returns the value on the first line of the file.
// A missing file, or a first line that is not a non-negative integer, yields 0.
// Only I/O failures other than not-exist are returned as errors.
func (s *FileStore) Load(_ context.Context) (uint64, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to open watermark %s: %w", s.path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	reader := bufio.NewReader(file)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		// Empty file
		return 0, nil
	}

	value, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, nil
	}

	return value, nil
}

// Location returns the file path.
func (s *FileStore) Location() string {
	return s.path
}

// syncDir flushes the directory entry for the rename. Not all platforms support it.
func syncDir(dir string) {
	d, err := os.Open(dir) // #nosec G304 - directory of the configured watermark path
	if err != nil {
		return
	}

	_ = d.Sync()
	_ = d.Close()
}
