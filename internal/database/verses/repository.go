// Package verses is the durable store for downloaded Bible content.
//
// It is the single writer surface of the engine: only the download
// scheduler and the coordinator's explicit persistence path write here.
// Every mutating operation recomputes the affected coverage rows inside the
// same transaction, so completeness queries always reflect the latest
// committed writes.
package verses

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// ErrNotFound is returned when a scope has no rows in the local store. It
// distinguishes "not downloaded" from "empty chapter".
var ErrNotFound = errors.New("content not found in local store")

// StorageError wraps a durable-write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// VerseInput is the write shape for UpsertVerses.
type VerseInput struct {
	BookID  string
	Chapter int
	Verse   int
	Text    string
}

// SearchResult pairs a stored verse with its relevance score.
type SearchResult struct {
	Verse     entities.StoredVerse `json:"verse"`
	Relevance float64              `json:"relevance"`
}

// Repository handles all stored-verse database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new verses repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertVerses persists a batch of verses atomically, idempotent by
// (bookID, chapter, verse). Re-upserting an existing verse updates its text
// but preserves downloaded_at, last_accessed_at and access_count.
func (r *Repository) UpsertVerses(inputs []VerseInput) error {
	if len(inputs) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([]entities.StoredVerse, 0, len(inputs))
	scopes := make(map[string]scope)
	for _, in := range inputs {
		book, err := catalog.ByID(in.BookID)
		if err != nil {
			return err
		}
		rows = append(rows, entities.StoredVerse{
			BookID:         in.BookID,
			Chapter:        in.Chapter,
			Verse:          in.Verse,
			Text:           in.Text,
			Testament:      book.Testament,
			BookName:       book.Name,
			DownloadedAt:   now,
			LastAccessedAt: now,
		})
		scopes[fmt.Sprintf("%s:%d", in.BookID, in.Chapter)] = scope{in.BookID, in.Chapter}
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "book_id"}, {Name: "chapter"}, {Name: "verse"}},
			DoUpdates: clause.AssignmentColumns([]string{"text"}),
		}).Create(&rows).Error
		if err != nil {
			return err
		}
		for _, s := range scopes {
			if err := recomputeCoverage(tx, s.bookID, s.chapter); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StorageError{Op: "upsert verses", Err: err}
	}
	return nil
}

// GetVerses returns the stored verses of a chapter in verse order, or
// ErrNotFound when nothing has been downloaded for the scope.
func (r *Repository) GetVerses(bookID string, chapter int) ([]entities.StoredVerse, error) {
	var rows []entities.StoredVerse
	err := r.db.Where("book_id = ? AND chapter = ?", bookID, chapter).
		Order("verse ASC").Find(&rows).Error
	if err != nil {
		return nil, &StorageError{Op: "get verses", Err: err}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %d: %w", bookID, chapter, ErrNotFound)
	}
	return rows, nil
}

// RecordAccess bumps the access bookkeeping of a single verse. Callers treat
// this as fire-and-forget; a failure here must never fail a read.
func (r *Repository) RecordAccess(bookID string, chapter, verse int) error {
	return r.recordAccess(r.db.Model(&entities.StoredVerse{}).
		Where("book_id = ? AND chapter = ? AND verse = ?", bookID, chapter, verse),
		bookID, chapter)
}

// RecordChapterAccess bumps the access bookkeeping of every stored verse in
// a chapter. Fire-and-forget, like RecordAccess.
func (r *Repository) RecordChapterAccess(bookID string, chapter int) error {
	return r.recordAccess(r.db.Model(&entities.StoredVerse{}).
		Where("book_id = ? AND chapter = ?", bookID, chapter),
		bookID, chapter)
}

func (r *Repository) recordAccess(q *gorm.DB, bookID string, chapter int) error {
	now := time.Now()
	err := q.Updates(map[string]any{
		"access_count":     gorm.Expr("access_count + 1"),
		"last_accessed_at": now,
	}).Error
	if err != nil {
		return &StorageError{Op: "record access", Err: err}
	}
	// Last-write-wins is fine here; coverage counts are untouched.
	err = r.db.Model(&entities.OfflineCoverage{}).
		Where("book_id = ? AND chapter IN (?, 0)", bookID, chapter).
		Update("last_accessed_at", now).Error
	if err != nil {
		return &StorageError{Op: "record coverage access", Err: err}
	}
	return nil
}

// Coverage returns the completeness record for a scope. Chapter 0 addresses
// the whole book. Scopes with no downloads yield an empty (not missing)
// record with totals from the catalog.
func (r *Repository) Coverage(bookID string, chapter int) (*entities.OfflineCoverage, error) {
	var cov entities.OfflineCoverage
	err := r.db.Where("book_id = ? AND chapter = ?", bookID, chapter).First(&cov).Error
	if err == nil {
		return &cov, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &StorageError{Op: "get coverage", Err: err}
	}

	total, err := scopeTotal(bookID, chapter)
	if err != nil {
		return nil, err
	}
	return &entities.OfflineCoverage{
		BookID:      bookID,
		Chapter:     chapter,
		TotalVerses: total,
	}, nil
}

// Search runs a case-insensitive substring match over the stored text and
// returns results ranked by relevance. Exact-phrase matches always rank
// above partial (per-word) matches.
func (r *Repository) Search(query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	lowered := strings.ToLower(query)
	words := strings.Fields(lowered)

	// Every phrase match also matches all individual words, so the AND over
	// words retrieves phrase and partial matches in one pass.
	q := r.db.Model(&entities.StoredVerse{})
	for _, w := range words {
		q = q.Where("LOWER(text) LIKE ?", "%"+w+"%")
	}

	var rows []entities.StoredVerse
	if err := q.Find(&rows).Error; err != nil {
		return nil, &StorageError{Op: "search verses", Err: err}
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, SearchResult{
			Verse:     row,
			Relevance: relevance(row.Text, lowered, words),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	return results, nil
}

// relevance scores a verse against a query. Exact-phrase matches start at
// 100 and decay with match position; partial matches score below any
// phrase match, growing with per-word match count.
func relevance(text, phrase string, words []string) float64 {
	lowered := strings.ToLower(text)

	if idx := strings.Index(lowered, phrase); idx >= 0 {
		count := strings.Count(lowered, phrase)
		score := 100.0 + 10.0*float64(count-1)
		// Earlier matches rank higher within the same count.
		score += 1.0 - float64(idx)/float64(len(lowered)+1)
		return score
	}

	matched := 0
	for _, w := range words {
		if strings.Contains(lowered, w) {
			matched++
		}
	}
	if len(words) == 0 {
		return 0
	}
	return 50.0 * float64(matched) / float64(len(words))
}

// Stats aggregates what is available offline.
func (r *Repository) Stats() (*entities.StoreStats, error) {
	stats := &entities.StoreStats{
		ByTestament: make(map[string]int64),
		ByBook:      make(map[string]int64),
	}

	err := r.db.Model(&entities.StoredVerse{}).Count(&stats.TotalVerses).Error
	if err != nil {
		return nil, &StorageError{Op: "count verses", Err: err}
	}
	err = r.db.Model(&entities.StoredVerse{}).Distinct("book_id").Count(&stats.TotalBooks).Error
	if err != nil {
		return nil, &StorageError{Op: "count books", Err: err}
	}
	// SQLite cannot COUNT(DISTINCT a, b) directly, so count via a subquery.
	err = r.db.Table("(?) AS chapters",
		r.db.Model(&entities.StoredVerse{}).Distinct("book_id", "chapter")).
		Count(&stats.TotalChapters).Error
	if err != nil {
		return nil, &StorageError{Op: "count chapters", Err: err}
	}

	var size *int64
	err = r.db.Model(&entities.StoredVerse{}).
		Select("SUM(LENGTH(text))").Scan(&size).Error
	if err != nil {
		return nil, &StorageError{Op: "estimate size", Err: err}
	}
	if size != nil {
		stats.EstimatedSize = *size
	}

	type group struct {
		Key   string
		Count int64
	}
	var byTestament []group
	err = r.db.Model(&entities.StoredVerse{}).
		Select("testament AS key, COUNT(*) AS count").Group("testament").Scan(&byTestament).Error
	if err != nil {
		return nil, &StorageError{Op: "group by testament", Err: err}
	}
	for _, g := range byTestament {
		stats.ByTestament[g.Key] = g.Count
	}

	var byBook []group
	err = r.db.Model(&entities.StoredVerse{}).
		Select("book_id AS key, COUNT(*) AS count").Group("book_id").Scan(&byBook).Error
	if err != nil {
		return nil, &StorageError{Op: "group by book", Err: err}
	}
	for _, g := range byBook {
		stats.ByBook[g.Key] = g.Count
	}

	return stats, nil
}

// AllCoverage returns every coverage row, book-level rows first.
func (r *Repository) AllCoverage() ([]entities.OfflineCoverage, error) {
	var rows []entities.OfflineCoverage
	err := r.db.Order("book_id ASC, chapter ASC").Find(&rows).Error
	if err != nil {
		return nil, &StorageError{Op: "list coverage", Err: err}
	}
	return rows, nil
}

// ClearAll deletes all stored verses and coverage in one transaction.
func (r *Repository) ClearAll() error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entities.StoredVerse{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&entities.OfflineCoverage{}).Error
	})
	if err != nil {
		return &StorageError{Op: "clear all", Err: err}
	}
	return nil
}

// ClearScope deletes a book's or chapter's verses and recomputes coverage
// in the same transaction. Chapter 0 clears the whole book.
func (r *Repository) ClearScope(bookID string, chapter int) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		q := tx.Where("book_id = ?", bookID)
		covQ := tx.Where("book_id = ?", bookID)
		if chapter > 0 {
			q = q.Where("chapter = ?", chapter)
			covQ = covQ.Where("chapter IN (?, 0)", chapter)
		}
		if err := q.Delete(&entities.StoredVerse{}).Error; err != nil {
			return err
		}
		if err := covQ.Delete(&entities.OfflineCoverage{}).Error; err != nil {
			return err
		}
		if chapter > 0 {
			// The rest of the book may still be present.
			return recomputeCoverage(tx, bookID, chapter)
		}
		return nil
	})
	if err != nil {
		return &StorageError{Op: "clear scope", Err: err}
	}
	return nil
}

type scope struct {
	bookID  string
	chapter int
}

func scopeTotal(bookID string, chapter int) (int, error) {
	if chapter > 0 {
		return catalog.VerseCount(bookID, chapter)
	}
	return catalog.TotalVerses(bookID)
}

// recomputeCoverage refreshes the chapter-level and book-level coverage rows
// of a scope. Must run inside the mutating transaction so readers never see
// coverage referencing missing verses.
func recomputeCoverage(tx *gorm.DB, bookID string, chapter int) error {
	if err := recomputeCoverageRow(tx, bookID, chapter); err != nil {
		return err
	}
	return recomputeCoverageRow(tx, bookID, 0)
}

func recomputeCoverageRow(tx *gorm.DB, bookID string, chapter int) error {
	total, err := scopeTotal(bookID, chapter)
	if err != nil {
		return err
	}

	q := tx.Model(&entities.StoredVerse{}).Where("book_id = ?", bookID)
	if chapter > 0 {
		q = q.Where("chapter = ?", chapter)
	}
	var downloaded int64
	if err := q.Count(&downloaded).Error; err != nil {
		return err
	}

	if downloaded == 0 {
		return tx.Where("book_id = ? AND chapter = ?", bookID, chapter).
			Delete(&entities.OfflineCoverage{}).Error
	}

	sizeQ := tx.Model(&entities.StoredVerse{}).Where("book_id = ?", bookID)
	if chapter > 0 {
		sizeQ = sizeQ.Where("chapter = ?", chapter)
	}
	var size *int64
	if err := sizeQ.Select("SUM(LENGTH(text))").Scan(&size).Error; err != nil {
		return err
	}
	var fileSize int64
	if size != nil {
		fileSize = *size
	}

	var cov entities.OfflineCoverage
	result := tx.Where("book_id = ? AND chapter = ?", bookID, chapter).First(&cov)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		cov = entities.OfflineCoverage{
			BookID:       bookID,
			Chapter:      chapter,
			DownloadedAt: time.Now(),
		}
	} else if result.Error != nil {
		return result.Error
	}

	cov.DownloadedVerses = int(downloaded)
	cov.TotalVerses = total
	cov.FileSize = fileSize
	cov.IsComplete = cov.DownloadedVerses == cov.TotalVerses

	return tx.Save(&cov).Error
}
