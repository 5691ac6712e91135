package entities

import (
	"fmt"
	"time"
)

type DownloadType string

const (
	DownloadTypeBook       DownloadType = "book"
	DownloadTypeChapter    DownloadType = "chapter"
	DownloadTypeVerseRange DownloadType = "verse_range"
)

type DownloadStatus string

const (
	DownloadStatusPending     DownloadStatus = "pending"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusPaused      DownloadStatus = "paused"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusFailed      DownloadStatus = "failed"
	DownloadStatusCancelled   DownloadStatus = "cancelled"
)

// DefaultMaxRetries is the retry budget for failed downloads.
const DefaultMaxRetries = 3

// DownloadTask tracks one in-flight or historical download attempt.
// Tasks are mutated only by the download scheduler and retained after they
// reach a terminal state until explicitly pruned.
type DownloadTask struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Type            DownloadType   `gorm:"size:20" json:"type"`
	BookID          string         `gorm:"size:10;index" json:"book_id"`
	Chapter         int            `json:"chapter,omitempty"`
	StartVerse      int            `json:"start_verse,omitempty"`
	EndVerse        int            `json:"end_verse,omitempty"`
	Status          DownloadStatus `gorm:"size:20;index" json:"status"`
	DownloadedItems int            `json:"downloaded_items"`
	TotalItems      int            `json:"total_items"`
	Error           string         `gorm:"type:text" json:"error,omitempty"`
	RetryCount      int            `json:"retry_count"`
	MaxRetries      int            `json:"max_retries"`
	IsBackground    bool           `json:"is_background"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

func (DownloadTask) TableName() string {
	return "download_tasks"
}

// Progress reports completion as a percentage, recomputed from item counts.
func (t *DownloadTask) Progress() int {
	if t.TotalItems <= 0 {
		return 0
	}
	return 100 * t.DownloadedItems / t.TotalItems
}

// CanRetry reports whether a failed task still has retry budget left.
func (t *DownloadTask) CanRetry() bool {
	return t.Status == DownloadStatusFailed && t.RetryCount < t.MaxRetries
}

// IsTerminal reports whether the task can no longer change state.
func (t *DownloadTask) IsTerminal() bool {
	switch t.Status {
	case DownloadStatusCompleted, DownloadStatusCancelled:
		return true
	case DownloadStatusFailed:
		return t.RetryCount >= t.MaxRetries
	}
	return false
}

// ScopeKey identifies the (book, chapter) unit a task downloads into.
// At most one task per scope may be active at a time.
func (t *DownloadTask) ScopeKey() string {
	if t.Type == DownloadTypeBook {
		return t.BookID
	}
	return fmt.Sprintf("%s:%d", t.BookID, t.Chapter)
}
