// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fundsheet/fundsheet/pkg/metrics"
	"github.com/fundsheet/fundsheet/pkg/storage"
)

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron      *cron.Cron
	store     storage.Storage
	retention time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(store storage.Storage, retention time.Duration, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:      c,
		store:     store,
		retention: retention,
		logger:    logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	// Storage housekeeping: runs hourly.
	_, err := s.cron.AddFunc("0 * * * *", s.pruneExpired)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the housekeeping job.
func (s *Scheduler) RunNow() {
	go s.pruneExpired()
}

// pruneExpired removes uploads and generated outputs past the retention
// window.
func (s *Scheduler) pruneExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	total := 0
	for _, prefix := range []string{"uploads", "outputs"} {
		removed, err := s.store.Prune(ctx, prefix, s.retention)
		if err != nil {
			s.logger.Warn("storage prune failed",
				slog.String("prefix", prefix),
				slog.Any("error", err),
			)
			continue
		}
		total += removed
	}

	metrics.OutputsPruned.Add(float64(total))
	s.logger.Info("storage housekeeping completed", slog.Int("files_removed", total))
}
