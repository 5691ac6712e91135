package bookmarks

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_bookmarks_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.Bookmark{},
		&entities.SearchHistoryEntry{},
	)
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func TestAddIsIdempotentPerVerse(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	first, err := repo.Add("jhn", 3, 16, "favoriet")
	require.NoError(t, err)

	second, err := repo.Add("jhn", 3, 16, "andere label")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "favoriet", second.Label)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListCanonicalOrder(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Add("gen", 2, 7, "")
	require.NoError(t, err)
	_, err = repo.Add("gen", 1, 1, "")
	require.NoError(t, err)
	_, err = repo.Add("gen", 1, 3, "")
	require.NoError(t, err)

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 1, all[0].Chapter)
	assert.Equal(t, 1, all[0].Verse)
	assert.Equal(t, 3, all[1].Verse)
	assert.Equal(t, 2, all[2].Chapter)
}

func TestDeleteAndIsBookmarked(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	bookmark, err := repo.Add("psa", 23, 1, "")
	require.NoError(t, err)

	marked, err := repo.IsBookmarked("psa", 23, 1)
	require.NoError(t, err)
	assert.True(t, marked)

	require.NoError(t, repo.Delete(bookmark.ID))

	marked, err = repo.IsBookmarked("psa", 23, 1)
	require.NoError(t, err)
	assert.False(t, marked)
}

func TestBookmarkedVersesLookup(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Add("jhn", 3, 16, "")
	require.NoError(t, err)

	set, err := repo.BookmarkedVerses()
	require.NoError(t, err)
	assert.True(t, set["jhn:3:16"])
	assert.False(t, set["jhn:3:17"])
}

func TestSearchHistoryNewestFirst(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.RecordSearch("hemel", 12))
	require.NoError(t, repo.RecordSearch("aarde", 7))

	entries, err := repo.SearchHistory(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "aarde", entries[0].Query)
	assert.Equal(t, 7, entries[0].ResultCount)

	limited, err := repo.SearchHistory(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
