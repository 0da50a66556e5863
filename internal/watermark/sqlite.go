package watermark

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// storedDigits is the width of a zero-padded uint64.
const storedDigits = 20

// Commit is one row of the commit history.
type Commit struct {
	Previous    uint64
	Value       uint64
	CommittedAt time.Time
}

// SQLiteStore keeps the watermark in a single-row table and records every commit.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (or creates) the database at path and applies migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// Single writer prevents SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// runMigrations applies all pending goose migrations from the embedded FS.
func runMigrations(db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(database.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Commit stores value if it is greater than the stored one and appends a history row.
// It returns ErrNotAdvancing when another writer already stored a value >= value.
func (s *SQLiteStore) Commit(ctx context.Context, value uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin watermark commit: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	var stored string

	err = tx.QueryRowContext(ctx, `SELECT value FROM watermark WHERE id = 1`).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read watermark: %w", err)
	}

	var previous uint64

	if stored != "" {
		previous, err = decodeValue(stored)
		if err != nil {
			return err
		}
	}

	if previous >= value {
		return fmt.Errorf("%w: stored %d, new %d", ErrNotAdvancing, previous, value)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO watermark (id, value, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		encodeValue(value), now)
	if err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO commits (previous, value, committed_at) VALUES (?, ?, ?)`,
		encodeValue(previous), encodeValue(value), now)
	if err != nil {
		return fmt.Errorf("record watermark commit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit watermark: %w", err)
	}

	return nil
}

// History returns the most recent commits, newest first.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]Commit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT previous, value, committed_at FROM commits ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query commit history: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var history []Commit

	for rows.Next() {
		var previousText, valueText, committedAt string

		if err := rows.Scan(&previousText, &valueText, &committedAt); err != nil {
			return nil, fmt.Errorf("scan commit history: %w", err)
		}

		previous, err := decodeValue(previousText)
		if err != nil {
			return nil, err
		}

		value, err := decodeValue(valueText)
		if err != nil {
			return nil, err
		}

		ts, _ := time.Parse(time.RFC3339Nano, committedAt)
		history = append(history, Commit{Previous: previous, Value: value, CommittedAt: ts})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commit history: %w", err)
	}

	return history, nil
}

// Load returns the stored watermark, or 0 if none has been committed.
func (s *SQLiteStore) Load(ctx context.Context) (uint64, error) {
	var stored string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM watermark WHERE id = 1`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("read watermark: %w", err)
	}

	return decodeValue(stored)
}

// Location returns the database path.
func (s *SQLiteStore) Location() string {
	return s.path
}

func decodeValue(text string) (uint64, error) {
	value, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stored watermark %q: %w", text, err)
	}

	return value, nil
}

func encodeValue(value uint64) string {
	return fmt.Sprintf("%0*d", storedDigits, value)
}
