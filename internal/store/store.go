package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO)

	ingesterrors "github.com/DrunkOnJava/ingestor-service/internal/errors"
)

// Store is the embedded relational persistence layer (spec §4.1): a
// single SQLite database per content collection, opened in WAL mode for
// concurrent readers alongside a single logical writer. All writes MUST
// funnel through Tx so that a ContentRecord and its chunks/links commit
// atomically.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	path     string
	fileLock *flock.Flock
	closed   bool
}

// Config controls how a Store connects to its backing database.
type Config struct {
	// Path is the sqlite file path, or ":memory:" for an ephemeral store.
	Path string
	// JournalMode is the SQLite journal_mode pragma (default WAL).
	JournalMode string
	// AutoVacuum is the SQLite auto_vacuum pragma.
	AutoVacuum string
	// BusyTimeoutMS bounds how long a writer waits on lock contention.
	BusyTimeoutMS int
	// CacheSizeKB is the SQLite page cache size in KB (negative per SQLite convention).
	CacheSizeKB int
}

// DefaultConfig returns sensible pragma defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		JournalMode:   "WAL",
		AutoVacuum:    "incremental",
		BusyTimeoutMS: 5000,
		CacheSizeKB:   65536,
	}
}

// Connect opens (creating if necessary) the SQLite database at cfg.Path,
// applies the WAL/pragma configuration, and installs the schema (spec
// §4.1: "applies base/entity/content/search schema DDL idempotently").
// A non-memory path is protected by a cross-process advisory lock on a
// sibling .lock file so two ingestor processes never race the same
// database directory during schema installation.
func Connect(cfg Config) (*Store, error) {
	var dsn string
	var fileLock *flock.Flock

	if cfg.Path == "" || cfg.Path == ":memory:" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, ingesterrors.New(ingesterrors.ErrCodeFilePermission, "failed to create store directory", err)
		}

		lockPath := filepath.Join(dir, ".store.lock")
		fileLock = flock.New(lockPath)
		if err := fileLock.Lock(); err != nil {
			return nil, ingesterrors.New(ingesterrors.ErrCodeFilePermission, "failed to acquire store lock", err)
		}

		dsn = cfg.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, ingesterrors.New(ingesterrors.ErrCodeNotConnected, "failed to open store database", err)
	}

	// Single writer, WAL mode: SQLite over modernc.org's driver serializes
	// writers internally, so one connection avoids SQLITE_BUSY storms.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	journalMode := cfg.JournalMode
	if journalMode == "" {
		journalMode = "WAL"
	}
	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout == 0 {
		busyTimeout = 5000
	}
	cacheSize := cfg.CacheSizeKB
	if cacheSize == 0 {
		cacheSize = 65536
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA journal_mode = %s", journalMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout),
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = -%d", cacheSize),
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	if cfg.AutoVacuum != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA auto_vacuum = %s", cfg.AutoVacuum))
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			return nil, ingesterrors.New(ingesterrors.ErrCodeNotConnected, "failed to set pragma "+pragma, err)
		}
	}

	s := &Store{db: db, path: cfg.Path, fileLock: fileLock}

	if err := s.installSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// installSchema applies the schema DDL idempotently and stamps the
// schema_version metadata row.
func (s *Store) installSchema() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return ingesterrors.New(ingesterrors.ErrCodeQuery, "failed to install schema", err)
	}

	_, err := s.db.Exec(
		`INSERT INTO db_metadata(key, value, updated_at) VALUES('schema_version', ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		schemaVersion, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return ingesterrors.New(ingesterrors.ErrCodeQuery, "failed to stamp schema version", err)
	}
	return nil
}

// Close closes the database and releases the cross-process lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.fileLock != nil {
		if err := s.fileLock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return ingesterrors.New(ingesterrors.ErrCodeInternal, "error(s) closing store", errs[0])
	}
	return nil
}

// Query runs a read-only SELECT and returns the raw *sql.Rows. Callers
// MUST reject non-SELECT statements before calling Query when exposing
// this at the query(sql, params) API boundary (spec §6).
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ingesterrors.New(ingesterrors.ErrCodeNotConnected, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapSQLError(err)
	}
	return rows, nil
}

// Tx runs fn inside a single serializable transaction, committing on
// success and rolling back on error or panic. Every multi-row content
// write (record + chunks + links) MUST go through Tx (spec §4.1).
func (s *Store) Tx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ingesterrors.New(ingesterrors.ErrCodeNotConnected, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return wrapSQLError(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return wrapSQLError(err)
	}

	if err := tx.Commit(); err != nil {
		return wrapSQLError(err)
	}
	return nil
}

// Vacuum reclaims free pages and defragments the database file.
func (s *Store) Vacuum(ctx context.Context) error {
	return s.exec(ctx, "VACUUM")
}

// Analyze refreshes the query planner's statistics.
func (s *Store) Analyze(ctx context.Context) error {
	return s.exec(ctx, "ANALYZE")
}

// Reindex rebuilds one table's indexes, or every index if table is empty.
func (s *Store) Reindex(ctx context.Context, table string) error {
	if table == "" {
		return s.exec(ctx, "REINDEX")
	}
	return s.exec(ctx, fmt.Sprintf("REINDEX %s", table))
}

func (s *Store) exec(ctx context.Context, stmt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ingesterrors.New(ingesterrors.ErrCodeNotConnected, "store is closed", nil)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return wrapSQLError(err)
	}
	return nil
}

// GetSchema returns the schema DDL this Store installed.
func (s *Store) GetSchema() string {
	return schemaDDL
}

// GetStatistics returns an operational snapshot of the database (spec §4.1).
func (s *Store) GetStatistics(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, ingesterrors.New(ingesterrors.ErrCodeNotConnected, "store is closed", nil)
	}

	var stats Stats
	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM content),
			(SELECT COUNT(*) FROM content_chunks),
			(SELECT COUNT(*) FROM entities),
			(SELECT COUNT(*) FROM content_entities)
	`)
	if err := row.Scan(&stats.ContentCount, &stats.ChunkCount, &stats.EntityCount, &stats.LinkCount); err != nil {
		return Stats{}, wrapSQLError(err)
	}

	var version sql.NullString
	_ = s.db.QueryRowContext(ctx, `SELECT value FROM db_metadata WHERE key = 'schema_version'`).Scan(&version)
	stats.SchemaVersion = version.String

	var oldest, newest sql.NullString
	_ = s.db.QueryRowContext(ctx, `SELECT MIN(created_at), MAX(created_at) FROM content`).Scan(&oldest, &newest)
	if oldest.Valid {
		if t, err := time.Parse(time.RFC3339, oldest.String); err == nil {
			stats.OldestContentAt = &t
		}
	}
	if newest.Valid {
		if t, err := time.Parse(time.RFC3339, newest.String); err == nil {
			stats.NewestContentAt = &t
		}
	}

	if s.path != "" && s.path != ":memory:" {
		if info, err := os.Stat(s.path); err == nil {
			stats.DatabaseSizeBytes = info.Size()
		}
	}

	return stats, nil
}
