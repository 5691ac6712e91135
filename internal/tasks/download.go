package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
	"github.com/bijbelquiz/bijbellezer/internal/downloader"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
)

// DownloadTask runs one enqueued download in the background.
type DownloadTask struct {
	TaskID string `json:"task_id"`
}

// Config returns the queue configuration for background downloads. Retries
// are owned by the download scheduler, not the queue, so a single attempt
// per dispatch.
func (t DownloadTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "download",
		MaxAttempts: 1,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// DownloadProcessor creates a processor function for DownloadTask. It picks
// up the task where the scheduler left it: pending tasks start, paused ones
// resume, anything terminal is a no-op.
func DownloadProcessor(scheduler *downloader.Scheduler) backlite.QueueProcessor[DownloadTask] {
	return func(ctx context.Context, t DownloadTask) error {
		task, err := scheduler.Task(t.TaskID)
		if errors.Is(err, downloads.ErrTaskNotFound) {
			log.Printf("[TASK] Download %s no longer exists, skipping", t.TaskID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("load download %s: %w", t.TaskID, err)
		}

		switch task.Status {
		case entities.DownloadStatusPending:
			return scheduler.Start(ctx, t.TaskID)
		case entities.DownloadStatusPaused:
			return scheduler.Resume(ctx, t.TaskID)
		default:
			log.Printf("[TASK] Download %s is %s, nothing to do", t.TaskID, task.Status)
			return nil
		}
	}
}

// NewDownloadQueue creates a backlite queue for background downloads.
func NewDownloadQueue(scheduler *downloader.Scheduler) backlite.Queue {
	return backlite.NewQueue(DownloadProcessor(scheduler))
}
