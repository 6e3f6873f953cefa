package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler runs the arena's periodic jobs: the inactivity monitor and the
// retry of parked outcome commits.
type Scheduler struct {
	sched  gocron.Scheduler
	logger *slog.Logger
}

func NewScheduler(clock clockwork.Clock, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	sched, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: sched, logger: logger}, nil
}

// StartInactivityMonitor sweeps every live session on each tick
func (s *Scheduler) StartInactivityMonitor(arena *ArenaService, every time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(arena.Sweep),
		gocron.WithName("inactivity-monitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// StartOutcomeRetry re-commits parked outcomes on each tick
func (s *Scheduler) StartOutcomeRetry(arena *ArenaService, every, timeout time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			n, err := arena.RetryPending(ctx)
			if err != nil {
				s.logger.Warn("outcome_retry_failed", slog.Int("committed", n), slog.Any("err", err))
				return
			}
			if n > 0 {
				s.logger.Info("outcome_retry_committed", slog.Int("committed", n))
			}
		}),
		gocron.WithName("outcome-retry"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Shutdown stops the scheduler and waits for running jobs
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}
