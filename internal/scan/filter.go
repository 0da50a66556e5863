package scan

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileFilter decides whether a directory entry is considered at all.
type FileFilter interface {
	// ShouldInclude returns true if the file with the given base name should be scanned
	ShouldInclude(name string) bool
}

// ExtensionFilter implements FileFilter as a case-insensitive extension match.
type ExtensionFilter struct {
	extension         string
	normalizedPattern string
	isEmpty           bool
}

// NewExtensionFilter creates a filter for the given extension.
// "NEF", ".nef" and "*.nef" are equivalent. An empty extension matches all files.
func NewExtensionFilter(extension string) *ExtensionFilter {
	ext := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(extension), "*"), "."))

	return &ExtensionFilter{
		extension:         ext,
		normalizedPattern: "*." + ext,
		isEmpty:           ext == "",
	}
}

// Extension returns the normalized extension, without the leading dot.
func (f *ExtensionFilter) Extension() string {
	return f.extension
}

// Valid reports whether the extension forms a usable glob pattern.
func (f *ExtensionFilter) Valid() bool {
	return f.isEmpty || doublestar.ValidatePattern(f.normalizedPattern)
}

// ShouldInclude reports whether name ends in the filter's extension, ignoring case.
func (f *ExtensionFilter) ShouldInclude(name string) bool {
	if f.isEmpty {
		return true
	}

	matched, err := doublestar.Match(f.normalizedPattern, strings.ToLower(name))
	if err != nil {
		// Rejected up front by Valid; an invalid pattern matches nothing
		return false
	}

	return matched
}
