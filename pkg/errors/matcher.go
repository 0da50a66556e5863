package errors

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"syscall"
)

// PatternMatcher matches errors to categories.
type PatternMatcher interface {
	Match(err error) ErrorCategory
}

// NewPatternMatcher creates a new PatternMatcher with predefined sentinels and patterns.
func NewPatternMatcher() PatternMatcher {
	return &patternMatcher{
		sentinels: []sentinelCategory{
			{target: syscall.ENOSPC, category: CategoryDiskSpace},
			{target: syscall.EDQUOT, category: CategoryDiskSpace},
			{target: fs.ErrPermission, category: CategoryPermission},
			{target: fs.ErrNotExist, category: CategoryPath},
			{target: io.ErrShortWrite, category: CategoryCopy},
			{target: syscall.EIO, category: CategoryCopy},
		},
		patterns: []patternCategory{
			{category: CategoryPermission, patterns: []string{"permission denied", "access denied", "operation not permitted"}},
			{category: CategoryDiskSpace, patterns: []string{"no space left on device", "disk full", "quota exceeded"}},
			{category: CategoryPath, patterns: []string{"no such file or directory", "file not found", "cannot find"}},
			{category: CategoryCopy, patterns: []string{"short write", "input/output error", "i/o error"}},
		},
	}
}

type sentinelCategory struct {
	target   error
	category ErrorCategory
}

type patternCategory struct {
	category ErrorCategory
	patterns []string
}

// patternMatcher is the concrete implementation of PatternMatcher.
// Sentinels are checked before message patterns, each in declaration order.
type patternMatcher struct {
	sentinels []sentinelCategory
	patterns  []patternCategory
}

// Match returns the error category for err.
func (m *patternMatcher) Match(err error) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	for _, s := range m.sentinels {
		if errors.Is(err, s.target) {
			return s.category
		}
	}

	lowerMsg := strings.ToLower(err.Error())

	for _, p := range m.patterns {
		for _, pattern := range p.patterns {
			if strings.Contains(lowerMsg, pattern) {
				return p.category
			}
		}
	}

	return CategoryUnknown
}
