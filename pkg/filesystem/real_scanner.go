package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kr/fs"
)

// realFileScanner implements FileScanner using the kr/fs walker, stopping at depth one.
type realFileScanner struct {
	root    string
	entries []FileInfo
	index   int
	err     error
	scanned bool
}

// newRealFileScanner creates a new scanner for the given directory.
func newRealFileScanner(root string) *realFileScanner {
	return &realFileScanner{
		root:    filepath.Clean(root),
		entries: make([]FileInfo, 0),
		index:   -1,
	}
}

// Next advances to the next entry and returns its info.
func (s *realFileScanner) Next() (FileInfo, bool) {
	// List on first call
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
func (s *realFileScanner) Err() error {
	return s.err
}

// scan collects the immediate children of root.
// The walker yields root twice when reading it fails; the second visit carries the error.
func (s *realFileScanner) scan() {
	// The walker does not follow a symlinked root.
	root := s.root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	walker := fs.Walk(root)

	for walker.Step() {
		path := walker.Path()

		if path == root {
			if err := walker.Err(); err != nil {
				s.err = fmt.Errorf("failed to list %s: %w", s.root, err)
				return
			}

			if !walker.Stat().IsDir() {
				s.err = fmt.Errorf("failed to list %s: not a directory", s.root)
				return
			}

			continue
		}

		entry := FileInfo{
			Name: filepath.Base(path),
			Path: path,
		}

		if err := walker.Err(); err != nil {
			entry.Err = err
			s.entries = append(s.entries, entry)

			continue
		}

		info := walker.Stat()
		if info.IsDir() {
			walker.SkipDir()
		}

		// The walker uses Lstat; resolve symlinks so the size and type describe the target.
		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := os.Stat(path)
			if err != nil {
				entry.Err = err
				s.entries = append(s.entries, entry)

				continue
			}

			info = resolved
		}

		entry.Size = info.Size()
		entry.ModTime = info.ModTime()
		entry.IsDir = info.IsDir()
		s.entries = append(s.entries, entry)
	}
}
