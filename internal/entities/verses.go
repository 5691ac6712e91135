package entities

import (
	"time"
)

type Testament string

const (
	TestamentOld Testament = "old"
	TestamentNew Testament = "new"
)

// StoredVerse is a verse persisted for offline reading. Rows are unique per
// (book_id, chapter, verse); re-downloading the same verse updates the text,
// never duplicates the row.
type StoredVerse struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	BookID         string    `gorm:"size:10;index:idx_verse_scope,unique,priority:1" json:"book_id"`
	Chapter        int       `gorm:"index:idx_verse_scope,unique,priority:2" json:"chapter"`
	Verse          int       `gorm:"index:idx_verse_scope,unique,priority:3" json:"verse"`
	Text           string    `gorm:"type:text" json:"text"`
	Testament      Testament `gorm:"size:10;index" json:"testament"`
	BookName       string    `gorm:"size:100" json:"book_name"`
	DownloadedAt   time.Time `json:"downloaded_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	AccessCount    int       `gorm:"default:0" json:"access_count"`
}

func (StoredVerse) TableName() string {
	return "stored_verses"
}

// OfflineCoverage is a materialized completeness record for a scope.
// Chapter 0 is the book-level aggregate. Rows are recomputed in the same
// transaction as every stored-verse mutation.
type OfflineCoverage struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	BookID           string     `gorm:"size:10;index:idx_coverage_scope,unique,priority:1" json:"book_id"`
	Chapter          int        `gorm:"index:idx_coverage_scope,unique,priority:2" json:"chapter"`
	DownloadedVerses int        `json:"downloaded_verses"`
	TotalVerses      int        `json:"total_verses"`
	FileSize         int64      `json:"file_size"`
	IsComplete       bool       `json:"is_complete"`
	DownloadedAt     time.Time  `json:"downloaded_at"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
}

func (OfflineCoverage) TableName() string {
	return "offline_coverage"
}

// StoreStats aggregates what is available offline.
type StoreStats struct {
	TotalVerses   int64            `json:"total_verses"`
	TotalBooks    int64            `json:"total_books"`
	TotalChapters int64            `json:"total_chapters"`
	EstimatedSize int64            `json:"estimated_size"`
	ByTestament   map[string]int64 `json:"by_testament"`
	ByBook        map[string]int64 `json:"by_book"`
}
