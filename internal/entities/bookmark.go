package entities

import (
	"time"
)

// Bookmark is a user-saved verse reference. Bookmarked verses rank higher in
// local search results.
type Bookmark struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BookID    string    `gorm:"size:10;index:idx_bookmark_ref,unique,priority:1" json:"book_id"`
	Chapter   int       `gorm:"index:idx_bookmark_ref,unique,priority:2" json:"chapter"`
	Verse     int       `gorm:"index:idx_bookmark_ref,unique,priority:3" json:"verse"`
	Label     string    `gorm:"size:256" json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// SearchHistoryEntry records a query the user ran, most recent first.
type SearchHistoryEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Query       string    `gorm:"size:512;index" json:"query"`
	ResultCount int       `json:"result_count"`
	SearchedAt  time.Time `gorm:"index" json:"searched_at"`
}

func (SearchHistoryEntry) TableName() string {
	return "search_history"
}
