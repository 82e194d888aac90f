package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "tx.db")+"?_foreign_keys=on")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec("CREATE TABLE counters (name TEXT PRIMARY KEY, value INTEGER)")
	require.NoError(t, err)
	return NewDB(sqlDB, zap.NewNop())
}

func count(t *testing.T, db *DB) int {
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM counters").Scan(&n))
	return n
}

func TestWithTransaction_Commit(t *testing.T) {
	db := openDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		_, err := ExecutorFrom(ctx, db.DB).ExecContext(ctx, "INSERT INTO counters VALUES ('a', 1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := ExecutorFrom(ctx, db.DB).ExecContext(ctx, "INSERT INTO counters VALUES ('a', 1)"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestWithTransaction_NestedCallsJoinOuter(t *testing.T) {
	db := openDB(t)

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		return db.WithTransaction(ctx, func(inner context.Context) error {
			_, err := ExecutorFrom(inner, db.DB).ExecContext(inner, "INSERT INTO counters VALUES ('a', 1)")
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
	assert.False(t, InTransaction(context.Background()))
}

func TestWithTransaction_RetriesWhenBusy(t *testing.T) {
	db := openDB(t)
	db.busyBackoff = time.Millisecond

	attempts := 0
	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		if _, err := ExecutorFrom(ctx, db.DB).ExecContext(ctx, "INSERT INTO counters VALUES ('a', 1)"); err != nil {
			return err
		}
		if attempts < 3 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 1, count(t, db), "failed attempts were rolled back")
}

func TestWithTransaction_GivesUpAfterRetries(t *testing.T) {
	db := openDB(t)
	db.busyBackoff = time.Millisecond

	attempts := 0
	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	assert.True(t, IsBusy(err))
	assert.Equal(t, defaultBusyRetries+1, attempts)
}

func TestIsUniqueViolation(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "INSERT INTO counters VALUES ('a', 1)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO counters VALUES ('a', 2)")
	require.Error(t, err)

	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsBusy(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.False(t, IsUniqueViolation(nil))
}
