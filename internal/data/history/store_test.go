package history

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	domainerrors "importcheck/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SaveAndListRuns(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRun(Run{
		ID: "run-1", Root: "/proj", Timestamp: base, Provider: "runtime",
		FilesIndexed: 10, FilesSkipped: 1, UndefinedCount: 2, ExternalCount: 3,
		Duration: 1500 * time.Millisecond,
	}, []IssueRecord{
		{File: "/proj/app.py", ImportPath: "pkg.mod.bar", Kind: "UNDEFINED", Message: "'pkg.mod' does not define 'bar'"},
		{File: "/proj/app.py", ImportPath: "requests", Kind: "EXTERNAL", Message: "Module not found: 'requests'"},
	}))
	require.NoError(t, store.SaveRun(Run{ID: "run-2", Root: "/proj", Timestamp: base.Add(time.Hour), FilesIndexed: 11}, nil))
	require.NoError(t, store.SaveRun(Run{ID: "run-3", Root: "/other", Timestamp: base.Add(2 * time.Hour)}, nil))

	runs, err := store.ListRuns("/proj", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 5, runs[1].IssueCount())
	assert.Equal(t, 1500*time.Millisecond, runs[1].Duration)
	assert.True(t, runs[1].Timestamp.Equal(base))

	all, err := store.ListRuns("", 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "run-3", all[0].ID)

	issues, err := store.RunIssues("run-1")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "pkg.mod.bar", issues[0].ImportPath)
	assert.Equal(t, "EXTERNAL", issues[1].Kind)
}

func TestStore_RejectsDuplicateAndEmptyIDs(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.SaveRun(Run{ID: "dup", Root: "/p"}, nil))
	assert.Error(t, store.SaveRun(Run{ID: "dup", Root: "/p"}, nil))

	err := store.SaveRun(Run{Root: "/p"}, nil)
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)

	_, err = Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, domainerrors.IsCode(err, domainerrors.CodeValidationError))
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open(driverName, "file:"+path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, EnsureSchema(db))

	var version int
	require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
	assert.Equal(t, SchemaVersion, version)
}

func TestIsLockError(t *testing.T) {
	assert.False(t, isLockError(sql.ErrConnDone))
	assert.True(t, isLockError(assertErr("database is locked")))
	assert.True(t, isLockError(assertErr("SQLITE_BUSY")))
	assert.False(t, isLockError(nil))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
