// Package watermark persists the highest identifier known to have been copied.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Exported variables.
var (
	ErrNotAdvancing = errors.New("watermark commit does not advance")
	ErrUnknownKind  = errors.New("unknown watermark store kind")
)

// Kind selects a Store backend.
type Kind string

// Exported constants.
const (
	// KindAuto picks sqlite for .db/.sqlite paths and the text file otherwise
	KindAuto   Kind = ""
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
)

// Store reads and writes the persisted watermark.
type Store interface {
	// Load returns the persisted watermark, or 0 if none has been written yet.
	Load(ctx context.Context) (uint64, error)
	// Commit persists value; a crash leaves either the old or the new value.
	Commit(ctx context.Context, value uint64) error
	// Location describes where the watermark lives, for messages.
	Location() string
	Close() error
}

// ParseKind parses a store kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAuto, "auto":
		return KindAuto, nil
	case KindFile, "text":
		return KindFile, nil
	case KindSQLite, "sqlite3", "db":
		return KindSQLite, nil
	default:
		return KindAuto, fmt.Errorf("%w: %s (valid: file, sqlite)", ErrUnknownKind, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for go-arg and yaml
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// Open returns the Store for path.
func Open(path string, kind Kind) (Store, error) {
	if kind == KindAuto {
		kind = detectKind(path)
	}

	switch kind {
	case KindFile:
		return NewFileStore(path), nil
	case KindSQLite:
		return OpenSQLiteStore(path)
	case KindAuto:
		return nil, fmt.Errorf("%w: could not detect kind for %s", ErrUnknownKind, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func detectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	default:
		return KindFile
	}
}
