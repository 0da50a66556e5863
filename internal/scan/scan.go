// Package scan finds the files in a source directory that are newer than the watermark.
package scan

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joe/copy-new/pkg/filesystem"
)

// Exported variables.
var (
	ErrSourceUnavailable = errors.New("source directory unavailable")
)

// Candidate is a source file paired with its numeric identifier.
type Candidate struct {
	ID   uint64
	Path string // full source path
	Name string // base name, reused as the destination name
	Size int64
}

// Result holds the candidates of one scan plus what was skipped and why.
type Result struct {
	Candidates        []Candidate
	Scanned           int
	SkippedDirs       int
	SkippedExtension  int
	SkippedNoID       int
	SkippedAtOrBelow  int
	SkippedUnreadable int
}

// TotalBytes returns the combined size of all candidates.
func (r *Result) TotalBytes() int64 {
	var total int64
	for _, c := range r.Candidates {
		total += c.Size
	}

	return total
}

// Scanner lists a directory and turns matching entries into candidates.
type Scanner struct {
	FS     filesystem.FileSystem
	Filter FileFilter
	Logger *slog.Logger
}

// NewScanner creates a scanner over fs that keeps files passing filter.
func NewScanner(fs filesystem.FileSystem, filter FileFilter) *Scanner {
	return &Scanner{
		FS:     fs,
		Filter: filter,
		Logger: slog.Default(),
	}
}

// Scan returns the entries of dir whose extension matches, whose name carries an ID,
// and whose ID is strictly greater than watermark, sorted by ascending ID.
// Entries that cannot be read are skipped; only an unreadable dir is an error.
func (s *Scanner) Scan(dir string, watermark uint64) (*Result, error) {
	result := &Result{}
	lister := s.FS.List(dir)

	for {
		entry, ok := lister.Next()
		if !ok {
			break
		}

		result.Scanned++
		s.classify(entry, watermark, result)
	}

	if err := lister.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	// Directory order is arbitrary; sort so dispatch order is ID-ascending and stable.
	sort.Slice(result.Candidates, func(i, j int) bool {
		a, b := result.Candidates[i], result.Candidates[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}

		return a.Name < b.Name
	})

	return result, nil
}

func (s *Scanner) classify(entry filesystem.FileInfo, watermark uint64, result *Result) {
	switch {
	case entry.Err != nil:
		result.SkippedUnreadable++
		s.logger().Warn("skipping unreadable entry", "path", entry.Path, "error", entry.Err)
	case entry.IsDir:
		result.SkippedDirs++
	case !s.Filter.ShouldInclude(entry.Name):
		result.SkippedExtension++
	default:
		id, ok := ExtractID(Stem(entry.Name))
		if !ok {
			result.SkippedNoID++
			s.logger().Debug("skipping file without identifier", "name", entry.Name)

			return
		}

		if id <= watermark {
			result.SkippedAtOrBelow++
			return
		}

		result.Candidates = append(result.Candidates, Candidate{
			ID:   id,
			Path: entry.Path,
			Name: entry.Name,
			Size: entry.Size,
		})
	}
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}

	return s.Logger
}
