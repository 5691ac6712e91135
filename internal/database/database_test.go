package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

func TestNewDatabaseMigratesAndUsesWAL(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "content.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.DB.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)

	for _, table := range []string{
		entities.StoredVerse{}.TableName(),
		entities.OfflineCoverage{}.TableName(),
		entities.DownloadTask{}.TableName(),
		entities.Bookmark{}.TableName(),
		entities.SearchHistoryEntry{}.TableName(),
	} {
		assert.True(t, db.DB.Migrator().HasTable(table), "table %s should exist", table)
	}
}

func TestDatabaseClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "content.db")

	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	assert.NoError(t, db.Close())
}
