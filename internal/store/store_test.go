package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errProbe = errors.New("probe failure")

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Connect(DefaultConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConnect_InMemory_InstallsSchema(t *testing.T) {
	s := newTestStore(t)

	var name string
	err := s.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='content'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "content", name)

	stats, err := s.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, stats.SchemaVersion)
}

func TestConnect_FilePath_AcquiresLockAndCreatesDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "ingestor.db")

	s, err := Connect(DefaultConfig(path))
	require.NoError(t, err)
	defer s.Close()

	assert.NotNil(t, s.fileLock)

	// A second connect attempt on the same path blocks on the advisory
	// lock; verify the lock file was created rather than actually
	// blocking the test.
	_, statErr := os.Stat(filepath.Join(dir, "sub", ".store.lock"))
	assert.NoError(t, statErr)
}

func TestClose_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestQuery_AfterClose_ReturnsNotConnected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Query(context.Background(), `SELECT 1`)
	require.Error(t, err)
}

func TestTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO db_metadata(key, value, updated_at) VALUES('probe', 'x', datetime('now'))`)
		require.NoError(t, err)
		return errProbe
	})
	require.Error(t, err)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM db_metadata WHERE key = 'probe'`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO db_metadata(key, value, updated_at) VALUES('probe', 'x', datetime('now'))`)
		return err
	})
	require.NoError(t, err)

	var value string
	require.NoError(t, s.db.QueryRow(`SELECT value FROM db_metadata WHERE key = 'probe'`).Scan(&value))
	assert.Equal(t, "x", value)
}

func TestVacuumAnalyzeReindex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.Vacuum(ctx))
	assert.NoError(t, s.Analyze(ctx))
	assert.NoError(t, s.Reindex(ctx, ""))
	assert.NoError(t, s.Reindex(ctx, "content"))
}

func TestGetSchema_ReturnsDDL(t *testing.T) {
	s := newTestStore(t)
	assert.Contains(t, s.GetSchema(), "CREATE TABLE IF NOT EXISTS content")
}
