package scan

import (
	"path/filepath"
	"strconv"
	"strings"
)

// ExtractID returns the leftmost run of ASCII decimal digits in stem, parsed as an
// unsigned integer. It reports false when stem has no digits or the run overflows uint64.
func ExtractID(stem string) (uint64, bool) {
	start := strings.IndexFunc(stem, isDigit)
	if start < 0 {
		return 0, false
	}

	end := start
	for end < len(stem) && isDigit(rune(stem[end])) {
		end++
	}

	id, err := strconv.ParseUint(stem[start:end], 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// Stem returns name without its final extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
