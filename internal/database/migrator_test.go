package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("fails with nil database", func(t *testing.T) {
		migrator, err := NewMigrator(nil, "", logger)
		assert.Nil(t, migrator)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is required")
	})

	t.Run("fails with nil pool", func(t *testing.T) {
		migrator, err := NewMigrator(&DB{}, "", logger)
		assert.Nil(t, migrator)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database pool not initialized")
	})
}

func TestMigrationSource(t *testing.T) {
	t.Run("empty path uses embedded migrations", func(t *testing.T) {
		name, src, err := migrationSource("")
		require.NoError(t, err)
		require.NotNil(t, src)
		defer src.Close()

		assert.Equal(t, "iofs", name)
		first, err := src.First()
		require.NoError(t, err)
		assert.Equal(t, uint(1), first)
	})

	t.Run("directory path uses the file driver", func(t *testing.T) {
		dir := t.TempDir()
		name, src, err := migrationSource(dir)
		require.NoError(t, err)
		assert.Nil(t, src)
		assert.Equal(t, "file://"+dir, name)
	})

	t.Run("missing path", func(t *testing.T) {
		_, _, err := migrationSource(filepath.Join(t.TempDir(), "absent"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migrations path validation failed")
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "000001_x.up.sql")
		require.NoError(t, os.WriteFile(path, []byte("SELECT 1;"), 0o600))

		_, _, err := migrationSource(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is not a directory")
	})
}
