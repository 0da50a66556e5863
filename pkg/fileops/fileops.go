// Package fileops provides the file copy unit used by the transfer engine.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joe/copy-new/pkg/filesystem"
)

// Exported constants.
const (
	// BufferSize is the size of the buffer used for file copy operations (32KB)
	BufferSize = 32 * 1024
	// DefaultDirPermissions is the default permission mode for created directories
	DefaultDirPermissions = 0o750
)

// Exported variables.
var (
	ErrNotRegularFile = errors.New("not a regular file")
)

// CopyStats contains timing information about a copy operation
type CopyStats struct {
	BytesCopied int64
	Duration    time.Duration
}

// FileOps provides file operations with dependency injection for filesystem access.
// This allows for testing without actual filesystem I/O.
type FileOps struct {
	FS filesystem.FileSystem
}

// NewFileOps creates a new FileOps instance with the given filesystem.
func NewFileOps(fs filesystem.FileSystem) *FileOps {
	return &FileOps{FS: fs}
}

// NewRealFileOps creates a new FileOps instance using the real filesystem.
func NewRealFileOps() *FileOps {
	return &FileOps{FS: filesystem.NewRealFileSystem()}
}

// CopyFile copies src to dst, overwriting dst if it exists.
// The copy either completes (bytes, modification time and permission bits match the source)
// or fails with dst removed, so a failed copy never leaves a file that looks complete.
func (fo *FileOps) CopyFile(src, dst string) (*CopyStats, error) {
	start := time.Now()
	stats := &CopyStats{}

	sourceFile, err := fo.FS.Open(src)
	if err != nil {
		return stats, fmt.Errorf("failed to open source file %s: %w", src, err)
	}

	defer func() {
		_ = sourceFile.Close()
	}()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return stats, fmt.Errorf("failed to stat source file %s: %w", src, err)
	}

	if sourceInfo.IsDir() {
		return stats, fmt.Errorf("%s: %w", src, ErrNotRegularFile)
	}

	dstDir := filepath.Dir(dst)

	err = fo.FS.MkdirAll(dstDir, DefaultDirPermissions)
	if err != nil {
		return stats, fmt.Errorf("failed to create destination directory %s: %w", dstDir, err)
	}

	destFile, err := fo.FS.Create(dst)
	if err != nil {
		return stats, fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}

	copyCompleted := false
	destClosed := false

	defer func() {
		if !destClosed {
			_ = destFile.Close()
		}
		// A cancelled or failed copy must not leave a partial file behind
		if !copyCompleted {
			_ = fo.FS.Remove(dst)
		}
	}()

	written, err := fo.copyLoop(sourceFile, destFile)
	stats.BytesCopied = written

	if err != nil {
		return stats, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	if written != sourceInfo.Size() {
		return stats, fmt.Errorf("failed to copy %s to %s: %w (%d of %d bytes)",
			src, dst, io.ErrShortWrite, written, sourceInfo.Size())
	}

	// Close before touching metadata; network filesystems reset times on close
	destClosed = true

	err = destFile.Close()
	if err != nil {
		return stats, fmt.Errorf("failed to close destination file %s: %w", dst, err)
	}

	err = fo.FS.Chmod(dst, sourceInfo.Mode().Perm())
	if err != nil {
		return stats, fmt.Errorf("failed to preserve permissions for %s: %w", dst, err)
	}

	err = fo.FS.Chtimes(dst, sourceInfo.ModTime(), sourceInfo.ModTime())
	if err != nil {
		return stats, fmt.Errorf("failed to preserve modification time for %s: %w", dst, err)
	}

	copyCompleted = true
	stats.Duration = time.Since(start)

	return stats, nil
}

// Stat returns file information.
func (fo *FileOps) Stat(path string) (os.FileInfo, error) {
	info, err := fo.FS.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return info, nil
}

func (fo *FileOps) copyLoop(sourceFile, destFile filesystem.File) (int64, error) {
	buf := make([]byte, BufferSize)

	var written int64

	for {
		nr, readErr := sourceFile.Read(buf)
		if nr > 0 {
			nw, writeErr := destFile.Write(buf[:nr])
			written += int64(nw)

			if writeErr != nil {
				return written, fmt.Errorf("write failed: %w", writeErr)
			}

			if nw != nr {
				return written, io.ErrShortWrite
			}
		}

		if errors.Is(readErr, io.EOF) {
			return written, nil
		}

		if readErr != nil {
			return written, fmt.Errorf("read failed: %w", readErr)
		}
	}
}
