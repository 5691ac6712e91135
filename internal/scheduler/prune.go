// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bijbelquiz/bijbellezer/internal/database/downloads"
)

// PruneScheduler periodically removes terminal download tasks past their
// retention window so the history does not grow without bound.
type PruneScheduler struct {
	repo      *downloads.Repository
	schedule  string
	retention time.Duration

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewPruneScheduler creates a scheduler for download-task retention.
func NewPruneScheduler(repo *downloads.Repository, schedule string, retention time.Duration) *PruneScheduler {
	return &PruneScheduler{
		repo:      repo,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler.
func (s *PruneScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, s.runPrune)
	if err != nil {
		return fmt.Errorf("failed to schedule prune job: %w", err)
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Download prune scheduler started (schedule: %s, retention: %s)", s.schedule, s.retention)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *PruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	log.Printf("Download prune scheduler stopped")
}

func (s *PruneScheduler) runPrune() {
	removed, err := s.repo.PruneTerminal(s.retention)
	if err != nil {
		log.Printf("Download prune failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Pruned %d finished download tasks", removed)
	}
}
