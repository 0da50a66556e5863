package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFileSystem is an in-memory filesystem implementation for testing.
// Failures can be injected per path to exercise error handling.
type MockFileSystem struct {
	mu          sync.RWMutex
	files       map[string]*mockFile
	openErrs    map[string]error
	createErrs  map[string]error
	writeErrs   map[string]error
	entryErrs   map[string]error
	listErrs    map[string]error
	openHooks   map[string]func()
	createCount map[string]int
}

// mockFile represents a file in the mock filesystem.
type mockFile struct {
	data    []byte
	modTime time.Time
	isDir   bool
	perm    os.FileMode
}

// mockFileInfo implements os.FileInfo for mock files.
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
	perm    os.FileMode
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() os.FileMode  { return fi.perm }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) Sys() any           { return nil }

// mockFileHandle implements the File interface for reading/writing.
type mockFileHandle struct {
	fs       *MockFileSystem
	path     string
	reader   *bytes.Reader
	writer   *bytes.Buffer
	writeErr error
	closed   bool
}

func (f *mockFileHandle) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if f.reader == nil {
		return 0, io.EOF
	}

	return f.reader.Read(p)
}

func (f *mockFileHandle) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if f.writeErr != nil {
		return 0, f.writeErr
	}

	if f.writer == nil {
		f.writer = &bytes.Buffer{}
	}

	return f.writer.Write(p)
}

func (f *mockFileHandle) Close() error {
	if f.closed {
		return os.ErrClosed
	}

	f.closed = true

	// Written data becomes visible on close
	if f.writer != nil {
		f.fs.mu.Lock()
		defer f.fs.mu.Unlock()

		if file, exists := f.fs.files[f.path]; exists {
			file.data = f.writer.Bytes()
		}
	}

	return nil
}

func (f *mockFileHandle) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}

	return f.fs.Stat(f.path)
}

// NewMockFileSystem creates a new in-memory filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files:       make(map[string]*mockFile),
		openErrs:    make(map[string]error),
		createErrs:  make(map[string]error),
		writeErrs:   make(map[string]error),
		entryErrs:   make(map[string]error),
		listErrs:    make(map[string]error),
		openHooks:   make(map[string]func()),
		createCount: make(map[string]int),
	}
}

// Chmod changes the permission bits of a file.
func (fs *MockFileSystem) Chmod(path string, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	file, exists := fs.files[path]
	if !exists {
		return os.ErrNotExist
	}

	file.perm = mode.Perm()

	return nil
}

// Chtimes changes the access and modification times of a file.
func (fs *MockFileSystem) Chtimes(path string, _, mtime time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	file, exists := fs.files[path]
	if !exists {
		return os.ErrNotExist
	}

	file.modTime = mtime

	return nil
}

// Create creates a file for writing.
func (fs *MockFileSystem) Create(path string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.createCount[path]++

	if err := fs.createErrs[path]; err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	if parent, exists := fs.files[dir]; dir != "." && dir != "/" && (!exists || !parent.isDir) {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	fs.files[path] = &mockFile{
		data:    []byte{},
		modTime: time.Now(),
		perm:    0o644,
	}

	return &mockFileHandle{
		fs:       fs,
		path:     path,
		writer:   &bytes.Buffer{},
		writeErr: fs.writeErrs[path],
	}, nil
}

// List returns an iterator over the immediate entries of dir.
func (fs *MockFileSystem) List(dir string) FileScanner {
	return newMockFileScanner(fs, filepath.Clean(dir))
}

// MkdirAll creates a directory and all necessary parents.
func (fs *MockFileSystem) MkdirAll(path string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mkdirAllLocked(filepath.Clean(path), perm)

	return nil
}

// Open opens a file for reading.
func (fs *MockFileSystem) Open(path string) (File, error) {
	fs.mu.RLock()
	hook := fs.openHooks[path]
	openErr := fs.openErrs[path]
	fs.mu.RUnlock()

	if hook != nil {
		hook()
	}

	if openErr != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: openErr}
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, exists := fs.files[path]
	if !exists {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}

	if file.isDir {
		return nil, fmt.Errorf("open %s: is a directory", path)
	}

	return &mockFileHandle{
		fs:     fs,
		path:   path,
		reader: bytes.NewReader(file.data),
	}, nil
}

// Remove removes a file or empty directory.
func (fs *MockFileSystem) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	file, exists := fs.files[path]
	if !exists {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrNotExist}
	}

	if file.isDir {
		for p := range fs.files {
			if strings.HasPrefix(p, path+"/") {
				return fmt.Errorf("remove %s: directory not empty", path)
			}
		}
	}

	delete(fs.files, path)

	return nil
}

// Stat returns file information.
func (fs *MockFileSystem) Stat(path string) (os.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, exists := fs.files[path]
	if !exists {
		return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
	}

	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.data)),
		modTime: file.modTime,
		isDir:   file.isDir,
		perm:    file.perm,
	}, nil
}

// mkdirAllLocked is the internal implementation that assumes the lock is held.
func (fs *MockFileSystem) mkdirAllLocked(path string, perm os.FileMode) {
	if path == "." || path == "/" {
		return
	}

	fs.mkdirAllLocked(filepath.Dir(path), perm)

	if _, exists := fs.files[path]; !exists {
		fs.files[path] = &mockFile{
			modTime: time.Now(),
			isDir:   true,
			perm:    perm,
		}
	}
}

// Helper methods for testing

// AddFile adds a file to the mock filesystem with the given content and modtime.
func (fs *MockFileSystem) AddFile(path string, content []byte, modTime time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mkdirAllLocked(filepath.Dir(path), 0o755)

	fs.files[path] = &mockFile{
		data:    append([]byte(nil), content...),
		modTime: modTime,
		perm:    0o644,
	}
}

// AddDir adds a directory (and its parents) to the mock filesystem.
func (fs *MockFileSystem) AddDir(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mkdirAllLocked(filepath.Clean(path), 0o755)
}

// CreateCount reports how many times Create was called for path.
func (fs *MockFileSystem) CreateCount(path string) int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.createCount[path]
}

// Exists checks if a path exists in the mock filesystem.
func (fs *MockFileSystem) Exists(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, exists := fs.files[path]

	return exists
}

// FailCreate makes every Create of path fail with err.
func (fs *MockFileSystem) FailCreate(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.createErrs[path] = err
}

// FailEntry makes the listing report err for the entry at path.
func (fs *MockFileSystem) FailEntry(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.entryErrs[path] = err
}

// FailList makes listing dir fail with err.
func (fs *MockFileSystem) FailList(dir string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.listErrs[filepath.Clean(dir)] = err
}

// FailOpen makes every Open of path fail with err.
func (fs *MockFileSystem) FailOpen(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.openErrs[path] = err
}

// FailWrite makes writes to a file created at path fail with err.
func (fs *MockFileSystem) FailWrite(path string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.writeErrs[path] = err
}

// GetFile retrieves a file's content from the mock filesystem.
func (fs *MockFileSystem) GetFile(path string) ([]byte, time.Time, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, exists := fs.files[path]
	if !exists {
		return nil, time.Time{}, os.ErrNotExist
	}

	if file.isDir {
		return nil, time.Time{}, fmt.Errorf("%s: is a directory", path)
	}

	return append([]byte(nil), file.data...), file.modTime, nil
}

// ListFiles returns all non-directory paths in the mock filesystem.
func (fs *MockFileSystem) ListFiles() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	paths := make([]string, 0, len(fs.files))

	for p, file := range fs.files {
		if !file.isDir {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}

// OnOpen registers a hook that runs before Open of path, outside the filesystem lock.
// Tests use it to block a copy or to trigger cancellation at a precise point.
func (fs *MockFileSystem) OnOpen(path string, hook func()) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.openHooks[path] = hook
}
