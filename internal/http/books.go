package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/content"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// CoverageStore answers "what is available offline" for book listings.
type CoverageStore interface {
	Coverage(bookID string, chapter int) (*entities.OfflineCoverage, error)
	AllCoverage() ([]entities.OfflineCoverage, error)
}

type BooksController struct {
	coordinator *content.Coordinator
	coverage    CoverageStore
}

func NewBooksController(coordinator *content.Coordinator, coverage CoverageStore) *BooksController {
	return &BooksController{coordinator: coordinator, coverage: coverage}
}

// BookListing pairs a catalog book with its offline coverage.
type BookListing struct {
	catalog.BookRef
	DownloadedVerses int  `json:"downloaded_verses"`
	TotalVerses      int  `json:"total_verses"`
	IsComplete       bool `json:"is_complete"`
}

// ListBooks returns the catalog with per-book coverage.
// GET /v1/books
func (bc *BooksController) ListBooks(c *gin.Context) {
	coverage, err := bc.coverage.AllCoverage()
	if err != nil {
		respondInternalError(c, err, "list coverage")
		return
	}
	byBook := make(map[string]entities.OfflineCoverage)
	for _, cov := range coverage {
		if cov.Chapter == 0 {
			byBook[cov.BookID] = cov
		}
	}

	books := catalog.Books()
	listings := make([]BookListing, len(books))
	for i, book := range books {
		listing := BookListing{BookRef: book}
		if cov, ok := byBook[book.ID]; ok {
			listing.DownloadedVerses = cov.DownloadedVerses
			listing.TotalVerses = cov.TotalVerses
			listing.IsComplete = cov.IsComplete
		}
		listings[i] = listing
	}
	c.JSON(http.StatusOK, listings)
}

// GetChapter serves a chapter through the coordinator's fallback logic.
// GET /v1/books/:bookId/chapters/:chapter
func (bc *BooksController) GetChapter(c *gin.Context) {
	bookID := c.Param("bookId")
	chapter, ok := parseIntParam(c, "chapter")
	if !ok {
		return
	}

	result, err := bc.coordinator.GetChapter(c.Request.Context(), bookID, chapter)
	if errors.Is(err, content.ErrContentUnavailable) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "chapter unavailable: not downloaded and no connection",
			Code:  "content_unavailable",
		})
		return
	}
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}
