package downloads

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	dbPath := "./test_downloads_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.DownloadTask{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return db, repo, cleanup
}

func newTask(status entities.DownloadStatus) *entities.DownloadTask {
	return &entities.DownloadTask{
		ID:         uuid.NewString(),
		Type:       entities.DownloadTypeChapter,
		BookID:     "gen",
		Chapter:    1,
		Status:     status,
		TotalItems: 31,
		MaxRetries: entities.DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}
}

func TestCreateAndGet(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	task := newTask(entities.DownloadStatusPending)
	require.NoError(t, repo.Create(task))

	got, err := repo.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, entities.DownloadStatusPending, got.Status)
	assert.Equal(t, 31, got.TotalItems)
}

func TestGetUnknownID(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Get(uuid.NewString())
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestListActiveExcludesTerminalTasks(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	pending := newTask(entities.DownloadStatusPending)
	paused := newTask(entities.DownloadStatusPaused)
	paused.Chapter = 2
	done := newTask(entities.DownloadStatusCompleted)
	done.Chapter = 3
	for _, task := range []*entities.DownloadTask{pending, paused, done} {
		require.NoError(t, repo.Create(task))
	}

	active, err := repo.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 2)
	for _, task := range active {
		assert.NotEqual(t, entities.DownloadStatusCompleted, task.Status)
	}
}

func TestPruneTerminal(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now().Add(-time.Minute)

	completedOld := newTask(entities.DownloadStatusCompleted)
	completedOld.CompletedAt = &old

	completedRecent := newTask(entities.DownloadStatusCompleted)
	completedRecent.Chapter = 2
	completedRecent.CompletedAt = &recent

	cancelledOld := newTask(entities.DownloadStatusCancelled)
	cancelledOld.Chapter = 3
	cancelledOld.CompletedAt = &old

	// Exhausted failure: no retry budget left, prunable.
	failedExhausted := newTask(entities.DownloadStatusFailed)
	failedExhausted.Chapter = 4
	failedExhausted.RetryCount = failedExhausted.MaxRetries
	failedExhausted.CompletedAt = &old

	// Retryable failure: must survive pruning.
	failedRetryable := newTask(entities.DownloadStatusFailed)
	failedRetryable.Chapter = 5
	failedRetryable.RetryCount = 1

	running := newTask(entities.DownloadStatusDownloading)
	running.Chapter = 6

	for _, task := range []*entities.DownloadTask{
		completedOld, completedRecent, cancelledOld, failedExhausted, failedRetryable, running,
	} {
		require.NoError(t, repo.Create(task))
	}

	pruned, err := repo.PruneTerminal(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)

	remaining, err := repo.List()
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	ids := map[string]bool{}
	for _, task := range remaining {
		ids[task.ID] = true
	}
	assert.True(t, ids[completedRecent.ID])
	assert.True(t, ids[failedRetryable.ID])
	assert.True(t, ids[running.ID])
}

func TestSaveUpdatesInPlace(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	task := newTask(entities.DownloadStatusPending)
	require.NoError(t, repo.Create(task))

	task.Status = entities.DownloadStatusDownloading
	task.DownloadedItems = 10
	require.NoError(t, repo.Save(task))

	got, err := repo.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.DownloadStatusDownloading, got.Status)
	assert.Equal(t, 10, got.DownloadedItems)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
