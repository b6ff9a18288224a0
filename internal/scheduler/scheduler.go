package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"PriceKeeper/internal/resolver"
)

// Maintainer is the set of resolver operations the scheduler drives.
type Maintainer interface {
	CleanupExpiredCache() int
	CleanupOldData(ctx context.Context, daysToKeep int) (int64, error)
	RefreshSymbols(ctx context.Context, symbols []string) (resolver.RefreshReport, error)
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron          *cron.Cron
	Target        Maintainer
	RetentionDays int
	Ctx           context.Context

	wg sync.WaitGroup
}

// NewScheduler creates a new Scheduler. Cron specs carry a seconds field.
func NewScheduler(ctx context.Context, target Maintainer, retentionDays int) *Scheduler {
	return &Scheduler{
		Cron:          cron.New(cron.WithSeconds()),
		Target:        target,
		RetentionDays: retentionDays,
		Ctx:           ctx,
	}
}

// RegisterAll registers the cache sweep, retention cleanup and refresh tasks.
// An empty spec leaves that task unscheduled.
func (s *Scheduler) RegisterAll(sweepCron, cleanupCron, refreshCron string) error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"sweep", sweepCron, s.sweepTask},
		{"cleanup", cleanupCron, s.cleanupTask},
		{"refresh", refreshCron, s.refreshTask},
	}
	for _, j := range jobs {
		if j.spec == "" {
			log.Info().Str("task", j.name).Msg("task disabled")
			continue
		}
		if _, err := s.Cron.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("register %s task: %w", j.name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running tasks, including a
// pending Trigger, to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	log.Info().Msg("scheduler stopped")
}

// Trigger runs every task once in the background.
func (s *Scheduler) Trigger() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunAllNow()
	}()
}

// RunAllNow executes every task once, in registration order.
func (s *Scheduler) RunAllNow() {
	s.sweepTask()
	s.cleanupTask()
	s.refreshTask()
}

func (s *Scheduler) sweepTask() {
	n := s.Target.CleanupExpiredCache()
	log.Info().Int("removed", n).Msg("cache sweep done")
}

func (s *Scheduler) cleanupTask() {
	if s.RetentionDays <= 0 {
		// CleanupOldData(0) deletes everything.
		log.Info().Msg("retention cleanup skipped, days_to_keep not set")
		return
	}
	n, err := s.Target.CleanupOldData(s.Ctx, s.RetentionDays)
	if err != nil {
		log.Error().Err(err).Msg("retention cleanup failed")
		return
	}
	log.Info().Int64("deleted", n).Int("days_to_keep", s.RetentionDays).Msg("retention cleanup done")
}

func (s *Scheduler) refreshTask() {
	report, err := s.Target.RefreshSymbols(s.Ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("refresh failed")
		return
	}
	log.Info().
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("refresh done")
}
