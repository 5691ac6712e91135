package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/database/bookmarks"
)

type BookmarksController struct {
	repo *bookmarks.Repository
}

func NewBookmarksController(repo *bookmarks.Repository) *BookmarksController {
	return &BookmarksController{repo: repo}
}

// Create adds a bookmark for a verse reference.
// POST /v1/bookmarks
func (bc *BookmarksController) Create(c *gin.Context) {
	var req struct {
		BookID  string `json:"book_id" binding:"required"`
		Chapter int    `json:"chapter" binding:"required"`
		Verse   int    `json:"verse" binding:"required"`
		Label   string `json:"label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "book_id, chapter and verse are required")
		return
	}
	if _, err := catalog.ByID(req.BookID); err != nil {
		respondBadRequest(c, "unknown book: "+req.BookID)
		return
	}
	bookmark, err := bc.repo.Add(req.BookID, req.Chapter, req.Verse, req.Label)
	if err != nil {
		respondInternalError(c, err, "create bookmark")
		return
	}
	respondCreated(c, bookmark)
}

// List returns all bookmarks.
// GET /v1/bookmarks
func (bc *BookmarksController) List(c *gin.Context) {
	all, err := bc.repo.List()
	if err != nil {
		respondInternalError(c, err, "list bookmarks")
		return
	}
	c.JSON(http.StatusOK, all)
}

// Delete removes a bookmark by id.
// DELETE /v1/bookmarks/:id
func (bc *BookmarksController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.repo.Delete(id); err != nil {
		respondInternalError(c, err, "delete bookmark")
		return
	}
	respondSuccess(c, "bookmark removed")
}
