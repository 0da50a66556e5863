package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
)

// mockFileScanner implements FileScanner for MockFileSystem.
type mockFileScanner struct {
	fs      *MockFileSystem
	root    string
	entries []FileInfo
	index   int
	err     error
	scanned bool
}

// newMockFileScanner creates a new scanner for the given directory.
func newMockFileScanner(fs *MockFileSystem, root string) *mockFileScanner {
	return &mockFileScanner{
		fs:      fs,
		root:    root,
		entries: make([]FileInfo, 0),
		index:   -1,
	}
}

// Next advances to the next entry and returns its info.
func (s *mockFileScanner) Next() (FileInfo, bool) {
	if !s.scanned {
		s.scan()
		s.scanned = true
	}

	if s.err != nil {
		return FileInfo{}, false
	}

	s.index++
	if s.index >= len(s.entries) {
		return FileInfo{}, false
	}

	return s.entries[s.index], true
}

// Err returns any error that stopped the listing.
func (s *mockFileScanner) Err() error {
	return s.err
}

// scan collects the direct children of root.
// Map iteration order is random, which mirrors a real directory's unspecified order.
func (s *mockFileScanner) scan() {
	s.fs.mu.RLock()
	defer s.fs.mu.RUnlock()

	if err := s.fs.listErrs[s.root]; err != nil {
		s.err = fmt.Errorf("failed to list %s: %w", s.root, err)
		return
	}

	rootFile, exists := s.fs.files[s.root]
	if !exists {
		s.err = fmt.Errorf("failed to list %s: %w", s.root, os.ErrNotExist)
		return
	}

	if !rootFile.isDir {
		s.err = fmt.Errorf("failed to list %s: not a directory", s.root)
		return
	}

	for path, file := range s.fs.files {
		if filepath.Dir(path) != s.root || path == s.root {
			continue
		}

		entry := FileInfo{
			Name: filepath.Base(path),
			Path: path,
		}

		if err := s.fs.entryErrs[path]; err != nil {
			entry.Err = err
		} else {
			entry.Size = int64(len(file.data))
			entry.ModTime = file.modTime
			entry.IsDir = file.isDir
		}

		s.entries = append(s.entries, entry)
	}
}
