// Package scheduler runs crawl and change-scan jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner. Jobs of the same name never overlap;
// a tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	running map[string]bool
}

// New creates a stopped scheduler.
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(),
		logger:  logger,
		running: make(map[string]bool),
	}
}

// Add registers a job under a standard 5-field cron expression.
func (s *Scheduler) Add(spec, name string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.Lock()
		if s.running[name] {
			s.mu.Unlock()
			s.logger.Warn("previous run still in progress, skipping tick",
				zap.String("job", name))
			return
		}
		s.running[name] = true
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.running[name] = false
			s.mu.Unlock()
		}()

		s.logger.Info("scheduled job starting", zap.String("job", name))
		if err := job(context.Background()); err != nil {
			s.logger.Error("scheduled job failed",
				zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("scheduled job finished", zap.String("job", name))
	})
	if err != nil {
		return fmt.Errorf("schedule job %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and returns a context that is done once any
// in-flight jobs have completed.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
