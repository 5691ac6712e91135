// Package downloader owns the lifecycle of download tasks and drives the
// fetch-then-persist work against the remote source.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/bijbelquiz/bijbellezer/internal/catalog"
	"github.com/bijbelquiz/bijbellezer/internal/database/verses"
	"github.com/bijbelquiz/bijbellezer/internal/entities"
	"github.com/bijbelquiz/bijbellezer/internal/remote"
)

// ErrScopeBusy is returned when a scope already has an in-flight task.
// Enqueue coalesces instead; this surfaces only from Retry.
var ErrScopeBusy = errors.New("a download for this scope is already in flight")

// ErrInvalidTransition is returned for state-machine violations, including
// retry attempts past the retry budget.
var ErrInvalidTransition = errors.New("invalid task state transition")

// VerseStore is the slice of the local store the scheduler writes through.
type VerseStore interface {
	UpsertVerses(inputs []verses.VerseInput) error
}

// TaskRepository persists task state across restarts.
type TaskRepository interface {
	Create(task *entities.DownloadTask) error
	Save(task *entities.DownloadTask) error
	Get(id string) (*entities.DownloadTask, error)
	List() ([]entities.DownloadTask, error)
}

// Config tunes the fetch loop.
type Config struct {
	// BatchSize is the number of verses fetched and persisted per remote
	// call. Default: 10
	BatchSize int

	// MaxRetries is the retry budget per task. Default: 3
	MaxRetries int

	// MaxConcurrent caps simultaneously running fetch loops. Default: 2
	MaxConcurrent int64
}

// DefaultConfig returns a Config with the defaults the app ships with.
func DefaultConfig() Config {
	return Config{
		BatchSize:     10,
		MaxRetries:    entities.DefaultMaxRetries,
		MaxConcurrent: 2,
	}
}

// Scope addresses what a task downloads: a book, a chapter, or a verse
// range within a chapter.
type Scope struct {
	Type       entities.DownloadType
	BookID     string
	Chapter    int
	StartVerse int
	EndVerse   int
}

// Subscriber receives task snapshots after every state or progress change.
type Subscriber func(task entities.DownloadTask)

// Scheduler owns the download task queue. Per scope at most one task is in
// flight at a time; duplicate enqueues coalesce onto the existing task.
type Scheduler struct {
	store   VerseStore
	tasks   TaskRepository
	fetcher remote.Fetcher
	cfg     Config
	sem     *semaphore.Weighted

	mu          sync.Mutex
	active      map[string]string // scope key -> task ID
	runs        map[string]*run   // task ID -> cancellation/pause flags
	subscribers map[int]Subscriber
	nextSubID   int
}

// run carries the flags the fetch loop checks between item fetches.
type run struct {
	mu        sync.Mutex
	cancelled bool
	paused    bool
}

func (r *run) interrupted() (cancelled, paused bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled, r.paused
}

// NewScheduler creates a download scheduler.
func NewScheduler(store VerseStore, tasks TaskRepository, fetcher remote.Fetcher, cfg Config) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = entities.DefaultMaxRetries
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	return &Scheduler{
		store:       store,
		tasks:       tasks,
		fetcher:     fetcher,
		cfg:         cfg,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
		active:      make(map[string]string),
		runs:        make(map[string]*run),
		subscribers: make(map[int]Subscriber),
	}
}

// Subscribe registers fn for task snapshots and returns an unsubscribe func.
func (s *Scheduler) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// Enqueue constructs a pending task for the scope. Fetching does not start
// until Start is called. If the scope already has an in-flight task, that
// task is returned instead of creating a duplicate.
func (s *Scheduler) Enqueue(scope Scope, isBackground bool) (*entities.DownloadTask, error) {
	totalItems, err := scopeItems(scope)
	if err != nil {
		return nil, err
	}

	task := &entities.DownloadTask{
		ID:           uuid.NewString(),
		Type:         scope.Type,
		BookID:       scope.BookID,
		Chapter:      scope.Chapter,
		StartVerse:   scope.StartVerse,
		EndVerse:     scope.EndVerse,
		Status:       entities.DownloadStatusPending,
		TotalItems:   totalItems,
		MaxRetries:   s.cfg.MaxRetries,
		IsBackground: isBackground,
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	if existingID, busy := s.active[task.ScopeKey()]; busy {
		s.mu.Unlock()
		return s.tasks.Get(existingID)
	}
	s.active[task.ScopeKey()] = task.ID
	s.mu.Unlock()

	if err := s.tasks.Create(task); err != nil {
		s.release(task)
		return nil, err
	}

	s.publish(task)
	return task, nil
}

// Start transitions a pending task to downloading and drives the fetch loop
// to completion, pause or cancellation. It blocks while fetching; callers
// run it on a goroutine or a task-queue worker. Fetch failures never
// propagate out of Start — they are recorded on the task itself.
func (s *Scheduler) Start(ctx context.Context, taskID string) error {
	task, err := s.claim(taskID, entities.DownloadStatusPending)
	if err != nil {
		return err
	}
	return s.download(ctx, task)
}

// Pause requests a downloading task to stop after the current item fetch.
// The status change is observable immediately.
func (s *Scheduler) Pause(taskID string) error {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if task.Status != entities.DownloadStatusDownloading {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, task.Status)
	}

	s.mu.Lock()
	if r, ok := s.runs[taskID]; ok {
		r.mu.Lock()
		r.paused = true
		r.mu.Unlock()
	}
	s.mu.Unlock()

	task.Status = entities.DownloadStatusPaused
	if err := s.tasks.Save(task); err != nil {
		return err
	}
	s.publish(task)
	return nil
}

// Resume continues a paused task from its downloaded-items offset, not from
// zero. Like Start, it blocks while fetching.
func (s *Scheduler) Resume(ctx context.Context, taskID string) error {
	task, err := s.claim(taskID, entities.DownloadStatusPaused)
	if err != nil {
		return err
	}
	return s.download(ctx, task)
}

// Retry restarts a failed task if it still has retry budget. A retry past
// the budget is rejected with ErrInvalidTransition.
func (s *Scheduler) Retry(ctx context.Context, taskID string) error {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if !task.CanRetry() {
		return fmt.Errorf("%w: retry budget exhausted (%d/%d)", ErrInvalidTransition, task.RetryCount, task.MaxRetries)
	}

	s.mu.Lock()
	if existingID, busy := s.active[task.ScopeKey()]; busy && existingID != task.ID {
		s.mu.Unlock()
		return ErrScopeBusy
	}
	s.active[task.ScopeKey()] = task.ID
	s.mu.Unlock()

	task, err = s.claim(taskID, entities.DownloadStatusFailed)
	if err != nil {
		return err
	}
	return s.download(ctx, task)
}

// Cancel removes a task from the active set. Already-persisted verses stay
// in the local store; partial downloads are not rolled back. The status
// change is observable before the fetch loop unwinds.
func (s *Scheduler) Cancel(taskID string) error {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		return err
	}
	switch task.Status {
	case entities.DownloadStatusPending, entities.DownloadStatusDownloading, entities.DownloadStatusPaused:
	default:
		return fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, task.Status)
	}

	s.mu.Lock()
	if r, ok := s.runs[taskID]; ok {
		r.mu.Lock()
		r.cancelled = true
		r.mu.Unlock()
	}
	s.mu.Unlock()

	now := time.Now()
	task.Status = entities.DownloadStatusCancelled
	task.CompletedAt = &now
	if err := s.tasks.Save(task); err != nil {
		return err
	}
	s.release(task)
	s.publish(task)
	return nil
}

// Task returns the current snapshot of a task.
func (s *Scheduler) Task(taskID string) (*entities.DownloadTask, error) {
	return s.tasks.Get(taskID)
}

// claim validates the transition into downloading and registers the run.
func (s *Scheduler) claim(taskID string, from entities.DownloadStatus) (*entities.DownloadTask, error) {
	task, err := s.tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != from {
		return nil, fmt.Errorf("%w: start from %s", ErrInvalidTransition, task.Status)
	}

	s.mu.Lock()
	if _, running := s.runs[taskID]; running {
		s.mu.Unlock()
		return nil, ErrScopeBusy
	}
	s.runs[taskID] = &run{}
	s.mu.Unlock()

	now := time.Now()
	task.Status = entities.DownloadStatusDownloading
	if task.StartedAt == nil {
		task.StartedAt = &now
	}
	task.Error = ""
	if err := s.tasks.Save(task); err != nil {
		s.dropRun(taskID)
		return nil, err
	}
	s.publish(task)
	return task, nil
}

// download runs the fetch loop for a claimed task.
func (s *Scheduler) download(ctx context.Context, task *entities.DownloadTask) error {
	defer s.dropRun(task.ID)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.fail(task, err)
		return nil
	}
	defer s.sem.Release(1)

	plan, err := buildPlan(task)
	if err != nil {
		s.fail(task, err)
		return nil
	}

	s.mu.Lock()
	r := s.runs[task.ID]
	s.mu.Unlock()

	for _, batch := range plan.batchesFrom(task.DownloadedItems, s.cfg.BatchSize) {
		// Cancellation and pause are checked before every item fetch so
		// latency is bounded by a single remote call.
		if cancelled, paused := r.interrupted(); cancelled {
			return nil
		} else if paused {
			return nil
		}
		if ctx.Err() != nil {
			s.fail(task, ctx.Err())
			return nil
		}

		fetched, err := s.fetcher.FetchVerses(ctx, batch.bookID, batch.chapter, batch.startVerse, batch.endVerse)
		if err != nil {
			s.fail(task, err)
			return nil
		}

		// Cancel may have landed while the fetch was in flight; drop the
		// batch before it is persisted. Earlier batches are retained.
		if cancelled, _ := r.interrupted(); cancelled {
			return nil
		}

		inputs := make([]verses.VerseInput, 0, len(fetched))
		for _, v := range fetched {
			inputs = append(inputs, verses.VerseInput{
				BookID:  v.BookID,
				Chapter: v.Chapter,
				Verse:   v.Verse,
				Text:    v.Text,
			})
		}

		// Persisting the whole batch in one transaction keeps an aborted
		// attempt from leaving half-written verse rows behind.
		if err := s.store.UpsertVerses(inputs); err != nil {
			s.fail(task, err)
			return nil
		}

		// Re-check after persisting: cancel's status write wins and the
		// persisted verses are retained; pause keeps the progress but must
		// not clobber the paused status with this loop's stale copy.
		cancelled, paused := r.interrupted()
		if cancelled {
			return nil
		}

		task.DownloadedItems += batch.size()
		if paused {
			task.Status = entities.DownloadStatusPaused
		}
		if err := s.tasks.Save(task); err != nil {
			s.fail(task, err)
			return nil
		}
		s.publish(task)
		if paused {
			return nil
		}
	}

	now := time.Now()
	task.Status = entities.DownloadStatusCompleted
	task.CompletedAt = &now
	if err := s.tasks.Save(task); err != nil {
		s.fail(task, err)
		return nil
	}
	s.release(task)
	s.publish(task)
	log.Printf("Download %s completed: %s (%d verses)", task.ID, task.ScopeKey(), task.TotalItems)
	return nil
}

// fail records the error on the task and consumes one retry.
func (s *Scheduler) fail(task *entities.DownloadTask, cause error) {
	task.RetryCount++
	task.Error = cause.Error()
	task.Status = entities.DownloadStatusFailed
	if task.RetryCount >= task.MaxRetries {
		now := time.Now()
		task.CompletedAt = &now
		s.release(task)
	}
	if err := s.tasks.Save(task); err != nil {
		log.Printf("Failed to persist failure of task %s: %v", task.ID, err)
	}
	s.publish(task)
	log.Printf("Download %s failed (attempt %d/%d): %v", task.ID, task.RetryCount, task.MaxRetries, cause)
}

func (s *Scheduler) release(task *entities.DownloadTask) {
	s.mu.Lock()
	if s.active[task.ScopeKey()] == task.ID {
		delete(s.active, task.ScopeKey())
	}
	s.mu.Unlock()
}

func (s *Scheduler) dropRun(taskID string) {
	s.mu.Lock()
	delete(s.runs, taskID)
	s.mu.Unlock()
}

func (s *Scheduler) publish(task *entities.DownloadTask) {
	s.mu.Lock()
	subs := make([]Subscriber, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	snapshot := *task
	for _, fn := range subs {
		fn(snapshot)
	}
}

// scopeItems derives the task's total item count from catalog metadata.
func scopeItems(scope Scope) (int, error) {
	switch scope.Type {
	case entities.DownloadTypeBook:
		return catalog.TotalVerses(scope.BookID)
	case entities.DownloadTypeChapter:
		return catalog.VerseCount(scope.BookID, scope.Chapter)
	case entities.DownloadTypeVerseRange:
		count, err := catalog.VerseCount(scope.BookID, scope.Chapter)
		if err != nil {
			return 0, err
		}
		start, end := scope.StartVerse, scope.EndVerse
		if start < 1 {
			start = 1
		}
		if end < 1 || end > count {
			end = count
		}
		if end < start {
			return 0, fmt.Errorf("invalid verse range %d-%d for %s %d", scope.StartVerse, scope.EndVerse, scope.BookID, scope.Chapter)
		}
		return end - start + 1, nil
	}
	return 0, fmt.Errorf("unknown download type: %s", scope.Type)
}
