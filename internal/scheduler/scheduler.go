// Package scheduler triggers pipeline runs on a cron expression or a
// fixed interval. Overlapping triggers are dropped, not queued: the
// pipeline's own guard refuses a second concurrent run and the scheduler
// records the skip.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/lorveOne/MinisterioRips/internal/pipeline"
)

// DefaultTimezone is the reporting timezone for cron schedules.
const DefaultTimezone = "America/Bogota"

// Runner is the single entry point the scheduler drives.
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunSummary, error)
}

// Stats accumulates run statistics over the scheduler's lifetime.
type Stats struct {
	StartedAt time.Time `json:"startedAt"`
	TotalRuns int       `json:"totalRuns"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	LastRun   time.Time `json:"lastRun,omitempty"`
}

// Scheduler drives recurring pipeline runs.
type Scheduler struct {
	runner Runner
	log    zerolog.Logger

	mu    sync.Mutex
	stats Stats
	cron  *cron.Cron
	stop  chan struct{}
}

func New(runner Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		log:    log,
		stats:  Stats{StartedAt: time.Now()},
		stop:   make(chan struct{}),
	}
}

// Stats returns a snapshot of the accumulated statistics.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RunOnce executes a single run immediately (manual mode).
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx)
}

// StartCron schedules runs with a 6-field cron expression (seconds first)
// in the given timezone; tz empty means DefaultTimezone.
func (s *Scheduler) StartCron(spec, tz string) error {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))
	_, err = c.AddFunc(spec, func() {
		_ = s.runJob(context.Background())
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	s.log.Info().Str("cron", spec).Str("timezone", tz).Msg("scheduled mode started")
	return nil
}

// StartInterval triggers a run immediately and then every interval until
// Stop is called or the context is cancelled. Blocks.
func (s *Scheduler) StartInterval(ctx context.Context, interval time.Duration) {
	s.log.Info().Dur("interval", interval).Msg("continuous mode started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_ = s.runJob(ctx)
	for {
		select {
		case <-ticker.C:
			_ = s.runJob(ctx)
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		}
	}
}

// Stop halts cron and interval scheduling. Safe to call once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c != nil {
		c.Stop()
	}
	close(s.stop)
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runJob(ctx context.Context) error {
	start := time.Now()
	summary, err := s.runner.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if errors.Is(err, pipeline.ErrRunInProgress) {
		s.stats.Skipped++
		s.log.Warn().Msg("run already in progress, trigger dropped")
		return err
	}

	s.stats.TotalRuns++
	s.stats.LastRun = start
	if err != nil {
		s.stats.Failed++
		s.log.Error().Err(err).Msg("run failed")
		return err
	}

	s.stats.Succeeded++
	s.log.Info().
		Int("submitted", summary.Submitted).
		Int("accepted", summary.Accepted+summary.Duplicates).
		Int("rejected", summary.Rejected+summary.CommFailures).
		Dur("duration", summary.DurationTotal).
		Msg("run succeeded")
	return nil
}
