// Package scheduler runs periodic store maintenance on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/mindflow/internal/logging"
)

// DefaultSchedule runs maintenance daily at 03:00.
const DefaultSchedule = "0 3 * * *"

// Maintainer is the subset of store.Store the scheduler drives.
type Maintainer interface {
	PruneRevisions(ctx context.Context, keep int) (int64, error)
	Vacuum(ctx context.Context) error
}

// Report describes one maintenance run.
type Report struct {
	Pruned   int64         `json:"pruned"`
	Duration time.Duration `json:"duration"`
}

// Scheduler prunes old revisions and vacuums the store each time its cron
// schedule fires.
type Scheduler struct {
	store    Maintainer
	spec     string
	schedule cron.Schedule
	keep     int
	logger   *slog.Logger
	now      func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	// running serializes maintenance runs.
	running sync.Mutex
}

// NewScheduler parses spec (five-field cron or a descriptor such as
// "@hourly" or "@every 6h") and returns a stopped Scheduler. keep is the
// number of revisions retained per diagram; 0 keeps all of them.
func NewScheduler(m Maintainer, spec string, keep int, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse maintenance schedule %q: %w", spec, err)
	}
	return &Scheduler{
		store:    m,
		spec:     spec,
		schedule: schedule,
		keep:     keep,
		logger:   logging.OrDiscard(logger),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// NextRun returns the first activation after from.
func (s *Scheduler) NextRun(from time.Time) time.Time {
	return s.schedule.Next(from)
}

// Start launches the background loop. It fails if the scheduler is already
// running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("maintenance scheduler started", slog.String("schedule", s.spec))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	for {
		now := s.now()
		next := s.NextRun(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("maintenance run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce prunes revisions and vacuums the store. Concurrent calls run one
// after the other.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	s.running.Lock()
	defer s.running.Unlock()

	start := s.now()
	var report Report

	pruned, err := s.store.PruneRevisions(ctx, s.keep)
	if err != nil {
		return report, fmt.Errorf("prune revisions: %w", err)
	}
	report.Pruned = pruned

	if err := s.store.Vacuum(ctx); err != nil {
		return report, fmt.Errorf("vacuum: %w", err)
	}
	report.Duration = s.now().Sub(start)

	s.logger.Info("maintenance run complete",
		slog.Int64("pruned_revisions", report.Pruned),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// Stop gracefully shuts down the scheduler, waiting for an in-progress run.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("maintenance scheduler stopped")
	return nil
}
