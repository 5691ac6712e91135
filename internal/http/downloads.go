package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
	"github.com/bijbelquiz/bijbellezer/internal/downloader"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
	"github.com/bijbelquiz/bijbellezer/internal/tasks"
)

type DownloadsController struct {
	scheduler  *downloader.Scheduler
	repo       *downloads.Repository
	taskClient *tasks.Client // nil when background processing is disabled
}

func NewDownloadsController(scheduler *downloader.Scheduler, repo *downloads.Repository, taskClient *tasks.Client) *DownloadsController {
	return &DownloadsController{scheduler: scheduler, repo: repo, taskClient: taskClient}
}

// taskView augments the persisted task with its derived progress.
type taskView struct {
	entities.DownloadTask
	Progress int  `json:"progress"`
	CanRetry bool `json:"can_retry"`
}

func viewOf(task *entities.DownloadTask) taskView {
	return taskView{DownloadTask: *task, Progress: task.Progress(), CanRetry: task.CanRetry()}
}

// Enqueue creates a download task and starts it. Background tasks are
// dispatched to the task queue; foreground ones start immediately.
// POST /v1/downloads
func (dc *DownloadsController) Enqueue(c *gin.Context) {
	var req struct {
		Type       entities.DownloadType `json:"type" binding:"required"`
		BookID     string                `json:"book_id" binding:"required"`
		Chapter    int                   `json:"chapter"`
		StartVerse int                   `json:"start_verse"`
		EndVerse   int                   `json:"end_verse"`
		Background bool                  `json:"background"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "type and book_id are required")
		return
	}

	task, err := dc.scheduler.Enqueue(downloader.Scope{
		Type:       req.Type,
		BookID:     req.BookID,
		Chapter:    req.Chapter,
		StartVerse: req.StartVerse,
		EndVerse:   req.EndVerse,
	}, req.Background)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	// A coalesced enqueue returns the already-running task as-is.
	if task.Status == entities.DownloadStatusPending {
		if req.Background && dc.taskClient != nil {
			if _, err := dc.taskClient.Add(tasks.DownloadTask{TaskID: task.ID}).Save(); err != nil {
				respondInternalError(c, err, "dispatch background download")
				return
			}
		} else {
			go func(id string) {
				_ = dc.scheduler.Start(context.Background(), id)
			}(task.ID)
		}
	}

	respondCreated(c, viewOf(task))
}

// List returns all tasks, most recent first.
// GET /v1/downloads
func (dc *DownloadsController) List(c *gin.Context) {
	all, err := dc.repo.List()
	if err != nil {
		respondInternalError(c, err, "list downloads")
		return
	}
	views := make([]taskView, len(all))
	for i := range all {
		views[i] = viewOf(&all[i])
	}
	c.JSON(http.StatusOK, views)
}

// Get returns one task snapshot.
// GET /v1/downloads/:id
func (dc *DownloadsController) Get(c *gin.Context) {
	task, err := dc.repo.Get(c.Param("id"))
	if errors.Is(err, downloads.ErrTaskNotFound) {
		respondNotFound(c, "download task")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get download")
		return
	}
	c.JSON(http.StatusOK, viewOf(task))
}

// Pause stops a downloading task after the in-flight item.
// POST /v1/downloads/:id/pause
func (dc *DownloadsController) Pause(c *gin.Context) {
	dc.transition(c, dc.scheduler.Pause)
}

// Resume continues a paused task from where it stopped.
// POST /v1/downloads/:id/resume
func (dc *DownloadsController) Resume(c *gin.Context) {
	id := c.Param("id")
	if err := dc.checkTransition(c, id); err != nil {
		return
	}
	go func() {
		_ = dc.scheduler.Resume(context.Background(), id)
	}()
	respondSuccess(c, "download resuming")
}

// Retry restarts a failed task when retry budget remains.
// POST /v1/downloads/:id/retry
func (dc *DownloadsController) Retry(c *gin.Context) {
	id := c.Param("id")
	task, err := dc.repo.Get(id)
	if errors.Is(err, downloads.ErrTaskNotFound) {
		respondNotFound(c, "download task")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get download")
		return
	}
	if !task.CanRetry() {
		respondConflict(c, "retry budget exhausted")
		return
	}
	go func() {
		_ = dc.scheduler.Retry(context.Background(), id)
	}()
	respondSuccess(c, "download retrying")
}

// Cancel removes a task from the active set, keeping persisted verses.
// POST /v1/downloads/:id/cancel
func (dc *DownloadsController) Cancel(c *gin.Context) {
	dc.transition(c, dc.scheduler.Cancel)
}

func (dc *DownloadsController) transition(c *gin.Context, op func(string) error) {
	err := op(c.Param("id"))
	if errors.Is(err, downloads.ErrTaskNotFound) {
		respondNotFound(c, "download task")
		return
	}
	if errors.Is(err, downloader.ErrInvalidTransition) {
		respondConflict(c, err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, err, "download transition")
		return
	}
	respondSuccess(c, "ok")
}

func (dc *DownloadsController) checkTransition(c *gin.Context, id string) error {
	task, err := dc.repo.Get(id)
	if errors.Is(err, downloads.ErrTaskNotFound) {
		respondNotFound(c, "download task")
		return err
	}
	if err != nil {
		respondInternalError(c, err, "get download")
		return err
	}
	if task.Status != entities.DownloadStatusPaused {
		respondConflict(c, "task is not paused")
		return downloader.ErrInvalidTransition
	}
	return nil
}
