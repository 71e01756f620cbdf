package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/agilewatch/agilewatch/internal/service"
)

// Scheduler periodically re-runs the fetch-and-index pipeline.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *service.Service
	interval  time.Duration
	log       *zap.Logger
}

// New creates a Scheduler that refreshes every interval.
func New(svc *service.Service, interval time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   svc,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the refresh job and starts the underlying scheduler. The
// first run fires immediately so the store is populated at startup.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		s.log.Info("running refresh job")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if err := s.service.RefreshAll(ctx); err != nil {
			s.log.Error("refresh job failed", zap.Error(err))
			return
		}
		s.log.Info("completed refresh job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
