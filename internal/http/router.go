package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/content"
	"github.com/bijbelquiz/bijbellezer/internal/database"
	"github.com/bijbelquiz/bijbellezer/internal/database/bookmarks"
	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
	"github.com/bijbelquiz/bijbellezer/internal/downloader"
	"github.com/bijbelquiz/bijbellezer/internal/tasks"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	Database    *database.Database
	VerseStore  *verses.Repository
	Downloads   *downloads.Repository
	Bookmarks   *bookmarks.Repository
	Coordinator *content.Coordinator
	Scheduler   *downloader.Scheduler
	TaskClient  *tasks.Client

	// APIKey, when set, is required in the X-API-Key header on every
	// /v1 request except the health check.
	APIKey string

	Version string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/v1/health", health.Status)

	v1 := router.Group("/v1")
	if cfg.APIKey != "" {
		v1.Use(apiKeyMiddleware(cfg.APIKey))
	}

	books := NewBooksController(cfg.Coordinator, cfg.VerseStore)
	v1.GET("/books", books.ListBooks)
	v1.GET("/books/:bookId/chapters/:chapter", books.GetChapter)

	search := NewSearchController(cfg.Coordinator, cfg.Bookmarks)
	v1.GET("/search", search.Search)
	v1.GET("/search/history", search.History)

	dl := NewDownloadsController(cfg.Scheduler, cfg.Downloads, cfg.TaskClient)
	v1.POST("/downloads", dl.Enqueue)
	v1.GET("/downloads", dl.List)
	v1.GET("/downloads/:id", dl.Get)
	v1.POST("/downloads/:id/pause", dl.Pause)
	v1.POST("/downloads/:id/resume", dl.Resume)
	v1.POST("/downloads/:id/retry", dl.Retry)
	v1.POST("/downloads/:id/cancel", dl.Cancel)

	offline := NewOfflineController(cfg.Coordinator, cfg.VerseStore)
	v1.GET("/offline", offline.State)
	v1.PUT("/offline/mode", offline.SetMode)
	v1.GET("/offline/coverage/:bookId", offline.Coverage)
	v1.GET("/offline/stats", offline.Stats)
	v1.DELETE("/offline/content", offline.Clear)

	bm := NewBookmarksController(cfg.Bookmarks)
	v1.POST("/bookmarks", bm.Create)
	v1.GET("/bookmarks", bm.List)
	v1.DELETE("/bookmarks/:id", bm.Delete)

	return router
}

func apiKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: "invalid or missing API key",
				Code:  "unauthorized",
			})
			return
		}
		c.Next()
	}
}
