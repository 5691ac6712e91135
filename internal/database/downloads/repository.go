// Package downloads persists download tasks. Tasks are mutated only by the
// download scheduler and kept after reaching a terminal state until pruned.
package downloads

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// ErrTaskNotFound is returned when a task ID is unknown.
var ErrTaskNotFound = errors.New("download task not found")

// Repository handles all download-task database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new downloads repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a freshly enqueued task.
func (r *Repository) Create(task *entities.DownloadTask) error {
	return r.db.Create(task).Error
}

// Save persists the current state of a task.
func (r *Repository) Save(task *entities.DownloadTask) error {
	return r.db.Save(task).Error
}

// Get returns a task by ID.
func (r *Repository) Get(id string) (*entities.DownloadTask, error) {
	var task entities.DownloadTask
	err := r.db.First(&task, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns all tasks, most recent first.
func (r *Repository) List() ([]entities.DownloadTask, error) {
	var tasks []entities.DownloadTask
	err := r.db.Order("created_at DESC").Find(&tasks).Error
	return tasks, err
}

// ListActive returns tasks that are pending, downloading or paused.
func (r *Repository) ListActive() ([]entities.DownloadTask, error) {
	var tasks []entities.DownloadTask
	err := r.db.Where("status IN ?", []entities.DownloadStatus{
		entities.DownloadStatusPending,
		entities.DownloadStatusDownloading,
		entities.DownloadStatusPaused,
	}).Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// PruneTerminal deletes completed, cancelled and retry-exhausted tasks that
// reached their terminal state before the cutoff. Returns the number of
// rows removed.
func (r *Repository) PruneTerminal(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := r.db.Where(
		"(status IN ? OR (status = ? AND retry_count >= max_retries)) AND completed_at IS NOT NULL AND completed_at < ?",
		[]entities.DownloadStatus{entities.DownloadStatusCompleted, entities.DownloadStatusCancelled},
		entities.DownloadStatusFailed,
		cutoff,
	).Delete(&entities.DownloadTask{})
	return result.RowsAffected, result.Error
}
