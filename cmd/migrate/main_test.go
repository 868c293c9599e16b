package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMigrate_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.db")

	require.NoError(t, run(t, "up", "--driver", "sqlite3", "--sqlite-path", path))
	require.NoError(t, run(t, "status", "--driver", "sqlite3", "--sqlite-path", path))
	require.NoError(t, run(t, "version", "--driver", "sqlite3", "--sqlite-path", path))
	require.NoError(t, run(t, "down", "--driver", "sqlite3", "--sqlite-path", path))
}

func TestMigrate_Create(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sqlite3"), 0o755))

	require.NoError(t, run(t, "create", "add_book_notes", "--driver", "sqlite3", "--dir", dir))

	files, err := filepath.Glob(filepath.Join(dir, "sqlite3", "*_add_book_notes.sql"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestMigrate_Errors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	assert.Error(t, run(t, "up", "--driver", "mysql"))
	assert.Error(t, run(t, "up", "--driver", "postgres", "--dsn", ""))
	assert.Error(t, run(t, "create"))
}
