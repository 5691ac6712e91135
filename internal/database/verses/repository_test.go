package verses

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	dbPath := "./test_verses_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.StoredVerse{},
		&entities.OfflineCoverage{},
	)
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, repo, cleanup
}

func chapterInputs(t *testing.T, bookID string, chapter int) []VerseInput {
	count, err := catalog.VerseCount(bookID, chapter)
	require.NoError(t, err)

	inputs := make([]VerseInput, 0, count)
	for v := 1; v <= count; v++ {
		inputs = append(inputs, VerseInput{
			BookID:  bookID,
			Chapter: chapter,
			Verse:   v,
			Text:    fmt.Sprintf("tekst van %s %d:%d", bookID, chapter, v),
		})
	}
	return inputs
}

func TestUpsertVersesIsIdempotent(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	inputs := []VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "In den beginne"},
		{BookID: "gen", Chapter: 1, Verse: 2, Text: "De aarde nu was woest"},
	}
	require.NoError(t, repo.UpsertVerses(inputs))
	require.NoError(t, repo.UpsertVerses(inputs))

	var count int64
	require.NoError(t, db.Model(&entities.StoredVerse{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestUpsertVersesUpdatesTextKeepsBookkeeping(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "oude tekst"},
	}))
	require.NoError(t, repo.RecordAccess("gen", 1, 1))

	var before entities.StoredVerse
	require.NoError(t, db.Where("book_id = ? AND chapter = ? AND verse = ?", "gen", 1, 1).First(&before).Error)
	require.Equal(t, 1, before.AccessCount)

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "nieuwe tekst"},
	}))

	var after entities.StoredVerse
	require.NoError(t, db.Where("book_id = ? AND chapter = ? AND verse = ?", "gen", 1, 1).First(&after).Error)
	assert.Equal(t, "nieuwe tekst", after.Text)
	assert.Equal(t, 1, after.AccessCount)
	assert.Equal(t, before.DownloadedAt.Unix(), after.DownloadedAt.Unix())
}

func TestUpsertVersesRejectsUnknownBook(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.UpsertVerses([]VerseInput{
		{BookID: "nope", Chapter: 1, Verse: 1, Text: "x"},
	})
	assert.Error(t, err)
}

func TestGetVersesReturnsOrderedRows(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 3, Text: "drie"},
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "een"},
		{BookID: "gen", Chapter: 1, Verse: 2, Text: "twee"},
	}))

	rows, err := repo.GetVerses("gen", 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Verse)
	assert.Equal(t, 2, rows[1].Verse)
	assert.Equal(t, 3, rows[2].Verse)
	assert.Equal(t, "Genesis", rows[0].BookName)
}

func TestGetVersesNotFound(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetVerses("gen", 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCoverageReflectsCommittedWrites(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	// Genesis 1 has 31 verses; store 30 of them.
	inputs := chapterInputs(t, "gen", 1)
	require.NoError(t, repo.UpsertVerses(inputs[:30]))

	cov, err := repo.Coverage("gen", 1)
	require.NoError(t, err)
	assert.Equal(t, 30, cov.DownloadedVerses)
	assert.Equal(t, 31, cov.TotalVerses)
	assert.False(t, cov.IsComplete)

	require.NoError(t, repo.UpsertVerses(inputs[30:]))

	cov, err = repo.Coverage("gen", 1)
	require.NoError(t, err)
	assert.Equal(t, 31, cov.DownloadedVerses)
	assert.True(t, cov.IsComplete)
}

func TestCoverageBookLevelRow(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses(chapterInputs(t, "gen", 1)))

	total, err := catalog.TotalVerses("gen")
	require.NoError(t, err)

	cov, err := repo.Coverage("gen", 0)
	require.NoError(t, err)
	assert.Equal(t, 31, cov.DownloadedVerses)
	assert.Equal(t, total, cov.TotalVerses)
	assert.False(t, cov.IsComplete)
}

func TestCoverageEmptyScopeIsNotAnError(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	cov, err := repo.Coverage("exo", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, cov.DownloadedVerses)
	assert.Equal(t, 25, cov.TotalVerses)
	assert.False(t, cov.IsComplete)
}

func TestSearchRanksPhraseAbovePartial(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "In den beginne schiep God den hemel en de aarde"},
		{BookID: "gen", Chapter: 2, Verse: 4, Text: "de aarde en den hemel, ten dage"},
		{BookID: "psa", Chapter: 1, Verse: 1, Text: "hemel alleen, zonder aarde ernaast"},
	}))

	results, err := repo.Search("hemel en de aarde")
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The exact phrase is only in gen 1:1.
	assert.Equal(t, "gen", results[0].Verse.BookID)
	assert.Equal(t, 1, results[0].Verse.Verse)
	assert.GreaterOrEqual(t, results[0].Relevance, 100.0)
	for _, res := range results[1:] {
		assert.Less(t, res.Relevance, 100.0)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "jhn", Chapter: 3, Verse: 16, Text: "Want alzo lief heeft God de wereld gehad"},
	}))

	results, err := repo.Search("GOD DE WERELD")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 16, results[0].Verse.Verse)
}

func TestSearchEmptyQuery(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	results, err := repo.Search("   ")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStats(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "aaaa"},
		{BookID: "gen", Chapter: 2, Verse: 1, Text: "bbbb"},
		{BookID: "mat", Chapter: 1, Verse: 1, Text: "cccc"},
	}))

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalVerses)
	assert.Equal(t, int64(2), stats.TotalBooks)
	assert.Equal(t, int64(3), stats.TotalChapters)
	assert.Equal(t, int64(12), stats.EstimatedSize)
	assert.Equal(t, int64(2), stats.ByTestament[string(entities.TestamentOld)])
	assert.Equal(t, int64(1), stats.ByTestament[string(entities.TestamentNew)])
	assert.Equal(t, int64(2), stats.ByBook["gen"])
}

func TestStatsEmptyStore(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalVerses)
	assert.Equal(t, int64(0), stats.EstimatedSize)
}

func TestClearAllRemovesVersesAndCoverage(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses(chapterInputs(t, "gen", 1)))
	require.NoError(t, repo.ClearAll())

	var verseCount, covCount int64
	require.NoError(t, db.Model(&entities.StoredVerse{}).Count(&verseCount).Error)
	require.NoError(t, db.Model(&entities.OfflineCoverage{}).Count(&covCount).Error)
	assert.Equal(t, int64(0), verseCount)
	assert.Equal(t, int64(0), covCount)
}

func TestClearScopeChapterKeepsRestOfBook(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses(chapterInputs(t, "gen", 1)))
	require.NoError(t, repo.UpsertVerses(chapterInputs(t, "gen", 2)))

	require.NoError(t, repo.ClearScope("gen", 1))

	_, err := repo.GetVerses("gen", 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	rows, err := repo.GetVerses("gen", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	// Book-level coverage is recomputed, not dropped.
	cov, err := repo.Coverage("gen", 0)
	require.NoError(t, err)
	assert.Equal(t, len(rows), cov.DownloadedVerses)
}

func TestClearScopeWholeBook(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses(chapterInputs(t, "gen", 1)))
	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "exo", Chapter: 1, Verse: 1, Text: "blijft staan"},
	}))

	require.NoError(t, repo.ClearScope("gen", 0))

	_, err := repo.GetVerses("gen", 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	rows, err := repo.GetVerses("exo", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRecordChapterAccess(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.UpsertVerses([]VerseInput{
		{BookID: "gen", Chapter: 1, Verse: 1, Text: "een"},
		{BookID: "gen", Chapter: 1, Verse: 2, Text: "twee"},
	}))

	require.NoError(t, repo.RecordChapterAccess("gen", 1))
	require.NoError(t, repo.RecordChapterAccess("gen", 1))

	var rows []entities.StoredVerse
	require.NoError(t, db.Where("book_id = ? AND chapter = ?", "gen", 1).Find(&rows).Error)
	for _, row := range rows {
		assert.Equal(t, 2, row.AccessCount)
	}
}
