// Package catalog holds the bundled, immutable book and chapter reference
// data the rest of the engine addresses content by. Verse counts follow the
// Statenvertaling versification.
package catalog

import (
	"fmt"

	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// BookRef identifies one book of the canon.
type BookRef struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Testament entities.Testament `json:"testament"`
	Chapters  int                `json:"chapters"`
}

// ChapterRef identifies one chapter and its verse count.
type ChapterRef struct {
	BookID     string `json:"book_id"`
	Chapter    int    `json:"chapter"`
	VerseCount int    `json:"verse_count"`
}

var booksByID = func() map[string]int {
	m := make(map[string]int, len(books))
	for i, b := range books {
		m[b.id] = i
	}
	return m
}()

// Books returns all books in canonical order.
func Books() []BookRef {
	refs := make([]BookRef, len(books))
	for i, b := range books {
		refs[i] = BookRef{ID: b.id, Name: b.name, Testament: b.testament, Chapters: len(b.verses)}
	}
	return refs
}

// ByID looks up a book by its identifier.
func ByID(bookID string) (BookRef, error) {
	i, ok := booksByID[bookID]
	if !ok {
		return BookRef{}, fmt.Errorf("unknown book: %s", bookID)
	}
	b := books[i]
	return BookRef{ID: b.id, Name: b.name, Testament: b.testament, Chapters: len(b.verses)}, nil
}

// Chapters returns the chapter references of a book in order.
func Chapters(bookID string) ([]ChapterRef, error) {
	i, ok := booksByID[bookID]
	if !ok {
		return nil, fmt.Errorf("unknown book: %s", bookID)
	}
	b := books[i]
	refs := make([]ChapterRef, len(b.verses))
	for ch, count := range b.verses {
		refs[ch] = ChapterRef{BookID: b.id, Chapter: ch + 1, VerseCount: count}
	}
	return refs, nil
}

// VerseCount returns the number of verses in a chapter.
func VerseCount(bookID string, chapter int) (int, error) {
	i, ok := booksByID[bookID]
	if !ok {
		return 0, fmt.Errorf("unknown book: %s", bookID)
	}
	b := books[i]
	if chapter < 1 || chapter > len(b.verses) {
		return 0, fmt.Errorf("chapter %d out of range for %s (1-%d)", chapter, b.name, len(b.verses))
	}
	return b.verses[chapter-1], nil
}

// TotalVerses returns the verse count of a whole book.
func TotalVerses(bookID string) (int, error) {
	i, ok := booksByID[bookID]
	if !ok {
		return 0, fmt.Errorf("unknown book: %s", bookID)
	}
	total := 0
	for _, count := range books[i].verses {
		total += count
	}
	return total, nil
}
