package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/content"
	"github.com/bijbelquiz/bijbellezer/internal/database/bookmarks"
)

type SearchController struct {
	coordinator *content.Coordinator
	history     *bookmarks.Repository
}

func NewSearchController(coordinator *content.Coordinator, history *bookmarks.Repository) *SearchController {
	return &SearchController{coordinator: coordinator, history: history}
}

// Search runs a merged local+remote search.
// GET /v1/search?q=geloof
func (sc *SearchController) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondBadRequest(c, "q is required")
		return
	}

	hits, err := sc.coordinator.Search(c.Request.Context(), query)
	if err != nil {
		respondInternalError(c, err, "search")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})
}

// History returns recent queries, newest first.
// GET /v1/search/history
func (sc *SearchController) History(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondBadRequest(c, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := sc.history.SearchHistory(limit)
	if err != nil {
		respondInternalError(c, err, "search history")
		return
	}
	c.JSON(http.StatusOK, entries)
}
