// Package scheduler provides cron-based background job scheduling.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work
type Job interface {
	// Run executes the job
	Run() error
	// Name returns the job name for logging
	Name() string
}

// Scheduler manages cron-based job execution
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a scheduler. Cron expressions include a seconds field.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// AddJob registers a job with a cron schedule
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.runJob(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.log.Info().
		Str("job", job.Name()).
		Str("schedule", schedule).
		Msg("Job scheduled")
	return nil
}

// runJob executes a job, logging its outcome. A panicking job must not take
// the scheduler down with it.
func (s *Scheduler) runJob(job Job) {
	start := time.Now()
	log := s.log.With().Str("job", job.Name()).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Dur("duration", time.Since(start)).
				Msg("Job panicked")
		}
	}()

	log.Debug().Msg("Job starting")

	if err := job.Run(); err != nil {
		log.Error().
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Job failed")
		return
	}

	log.Info().
		Dur("duration", time.Since(start)).
		Msg("Job completed")
}

// Start begins executing scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}
