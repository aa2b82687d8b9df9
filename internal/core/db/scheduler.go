package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes stored revisions older than a retention period.
// *ManifestStore implements it.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PruneScheduler runs a Pruner on a cron schedule (e.g. "@daily" or
// "0 3 * * *").
type PruneScheduler struct {
	pruner    Pruner
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewPruneScheduler creates a scheduler that prunes revisions older than
// retention. An empty schedule disables it.
func NewPruneScheduler(pruner Pruner, schedule string, retention time.Duration, logger *slog.Logger) *PruneScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneScheduler{
		pruner:    pruner,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.With("component", "prune_scheduler"),
	}
}

// Start registers the pruning job and starts the cron runner. The scheduler
// stops itself when ctx is cancelled.
func (s *PruneScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("prune schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("prune scheduler already running")
	}
	if s.retention <= 0 {
		return fmt.Errorf("retention must be positive, got %v", s.retention)
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("prune scheduler started",
		"schedule", s.schedule,
		"retention", s.retention,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce executes one pruning cycle and returns the number of deleted
// revisions.
func (s *PruneScheduler) RunOnce(ctx context.Context) (int64, error) {
	deleted, err := s.pruner.Prune(ctx, s.retention)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled pruning completed, no revisions deleted")
	}
	return deleted, nil
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *PruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("prune scheduler stopped")
	}
}

// IsRunning reports whether the cron runner is active.
func (s *PruneScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled pruning time, or nil when not running.
func (s *PruneScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
