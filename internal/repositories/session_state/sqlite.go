package sessionstate

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	// Registers the pure-Go "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/pkg/clock"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS session_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteConfig holds the configuration for the SQLite repository
type SQLiteConfig struct {
	// Path to the database file; parent directories are created
	Path  string
	Clock clock.Clock
}

// Validate ensures all required fields are provided
func (c *SQLiteConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	if strings.TrimSpace(c.Path) == "" {
		return errors.InvalidArgument("sqlite path is required")
	}
	if c.Clock == nil {
		return errors.InvalidArgument("clock is required")
	}
	return nil
}

type sqliteRepository struct {
	db    *sql.DB
	clock clock.Clock
}

// NewSQLiteRepository opens the database, creating the table if needed
func NewSQLiteRepository(ctx context.Context, cfg *SQLiteConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	cleanPath := filepath.Clean(cfg.Path)
	if err := ensureParentDir(cleanPath); err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to create directory for %s", cleanPath)
	}

	dsn := cleanPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to open sqlite db %s", cleanPath)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to ping sqlite db %s", cleanPath)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.WrapWithCode(err, errors.CodeInternal, "failed to create session_state table")
	}

	return &sqliteRepository{
		db:    db,
		clock: cfg.Clock,
	}, nil
}

var _ Repository = (*sqliteRepository)(nil)

// Get reads the snapshot row
func (r *sqliteRepository) Get(ctx context.Context, input *GetInput) (*GetOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM session_state WHERE key = ?`,
		input.Key,
	)

	var value []byte
	var updatedAt int64
	if err := row.Scan(&value, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound(input.Key)
		}
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to get session state %q", input.Key)
	}

	return &GetOutput{
		Record: &Record{
			Key:       input.Key,
			Value:     value,
			UpdatedAt: time.UnixMilli(updatedAt),
		},
	}, nil
}

// Put upserts the snapshot row
func (r *sqliteRepository) Put(ctx context.Context, input *PutInput) (*PutOutput, error) {
	if err := validatePut(input); err != nil {
		return nil, err
	}

	now := r.clock.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		    value = excluded.value,
		    updated_at = excluded.updated_at`,
		input.Key, input.Value, now.UnixMilli(),
	)
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to store session state %q", input.Key)
	}

	return &PutOutput{
		Record: &Record{
			Key:       input.Key,
			Value:     append([]byte(nil), input.Value...),
			UpdatedAt: time.UnixMilli(now.UnixMilli()),
		},
	}, nil
}

// Delete removes the snapshot row
func (r *sqliteRepository) Delete(ctx context.Context, input *DeleteInput) (*DeleteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument(errInputNil)
	}
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM session_state WHERE key = ?`, input.Key)
	if err != nil {
		return nil, errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to delete session state %q", input.Key)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInternal, "failed to read affected rows")
	}

	return &DeleteOutput{Deleted: affected > 0}, nil
}

// Close releases the database handle
func (r *sqliteRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}
