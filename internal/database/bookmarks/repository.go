// Package bookmarks persists user-authored bookmarks and search history.
// Bookmarks feed search ranking; history is recorded by the coordinator on
// every search.
package bookmarks

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// Repository handles bookmark and search-history database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new bookmarks repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Add creates a bookmark, or returns the existing one for the same verse.
func (r *Repository) Add(bookID string, chapter, verse int, label string) (*entities.Bookmark, error) {
	var existing entities.Bookmark
	err := r.db.Where("book_id = ? AND chapter = ? AND verse = ?", bookID, chapter, verse).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	bookmark := &entities.Bookmark{
		BookID:  bookID,
		Chapter: chapter,
		Verse:   verse,
		Label:   label,
	}
	if err := r.db.Create(bookmark).Error; err != nil {
		return nil, fmt.Errorf("create bookmark: %w", err)
	}
	return bookmark, nil
}

// List returns all bookmarks in canonical reading order.
func (r *Repository) List() ([]entities.Bookmark, error) {
	var bookmarks []entities.Bookmark
	err := r.db.Order("book_id ASC, chapter ASC, verse ASC").Find(&bookmarks).Error
	return bookmarks, err
}

// Delete removes a bookmark by ID.
func (r *Repository) Delete(id uint) error {
	return r.db.Delete(&entities.Bookmark{}, id).Error
}

// IsBookmarked reports whether a verse has a bookmark.
func (r *Repository) IsBookmarked(bookID string, chapter, verse int) (bool, error) {
	var count int64
	err := r.db.Model(&entities.Bookmark{}).
		Where("book_id = ? AND chapter = ? AND verse = ?", bookID, chapter, verse).
		Count(&count).Error
	return count > 0, err
}

// BookmarkedVerses returns a lookup set of every bookmarked verse, keyed
// "bookId:chapter:verse". Used by search ranking.
func (r *Repository) BookmarkedVerses() (map[string]bool, error) {
	bookmarks, err := r.List()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(bookmarks))
	for _, b := range bookmarks {
		set[fmt.Sprintf("%s:%d:%d", b.BookID, b.Chapter, b.Verse)] = true
	}
	return set, nil
}

// RecordSearch appends a query to the search history.
func (r *Repository) RecordSearch(query string, resultCount int) error {
	return r.db.Create(&entities.SearchHistoryEntry{
		Query:       query,
		ResultCount: resultCount,
		SearchedAt:  time.Now(),
	}).Error
}

// SearchHistory returns the most recent queries, newest first.
func (r *Repository) SearchHistory(limit int) ([]entities.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []entities.SearchHistoryEntry
	err := r.db.Order("searched_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
