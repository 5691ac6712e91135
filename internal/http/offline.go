package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/content"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
)

type OfflineController struct {
	coordinator *content.Coordinator
	store       *verses.Repository
}

func NewOfflineController(coordinator *content.Coordinator, store *verses.Repository) *OfflineController {
	return &OfflineController{coordinator: coordinator, store: store}
}

// State reports connectivity, offline mode and store statistics.
// GET /v1/offline
func (oc *OfflineController) State(c *gin.Context) {
	c.JSON(http.StatusOK, oc.coordinator.State())
}

// SetMode forces offline mode on or off.
// PUT /v1/offline/mode
func (oc *OfflineController) SetMode(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "enabled is required")
		return
	}
	if err := oc.coordinator.SetOfflineMode(*req.Enabled); err != nil {
		if errors.Is(err, content.ErrNoOfflineContent) {
			respondConflict(c, "no downloaded content available for offline use")
			return
		}
		respondInternalError(c, err, "set offline mode")
		return
	}
	c.JSON(http.StatusOK, oc.coordinator.State())
}

// Coverage reports how much of a book or chapter is stored locally.
// GET /v1/offline/coverage/:bookId
// GET /v1/offline/coverage/:bookId?chapter=N
func (oc *OfflineController) Coverage(c *gin.Context) {
	chapter := 0
	if raw := c.Query("chapter"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondBadRequest(c, "invalid chapter")
			return
		}
		chapter = parsed
	}
	cov, err := oc.store.Coverage(c.Param("bookId"), chapter)
	if err != nil {
		respondInternalError(c, err, "get coverage")
		return
	}
	c.JSON(http.StatusOK, cov)
}

// Stats reports aggregate statistics about the local store.
// GET /v1/offline/stats
func (oc *OfflineController) Stats(c *gin.Context) {
	stats, err := oc.store.Stats()
	if err != nil {
		respondInternalError(c, err, "get stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Clear removes downloaded content, either everything or one scope.
// DELETE /v1/offline/content
// DELETE /v1/offline/content?book_id=gen&chapter=3
func (oc *OfflineController) Clear(c *gin.Context) {
	bookID := c.Query("book_id")
	if bookID == "" {
		if err := oc.store.ClearAll(); err != nil {
			respondInternalError(c, err, "clear content")
			return
		}
		respondSuccess(c, "all downloaded content removed")
		return
	}

	chapter := 0
	if raw := c.Query("chapter"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondBadRequest(c, "invalid chapter")
			return
		}
		chapter = parsed
	}
	if err := oc.store.ClearScope(bookID, chapter); err != nil {
		respondInternalError(c, err, "clear content")
		return
	}
	respondSuccess(c, "downloaded content removed")
}
