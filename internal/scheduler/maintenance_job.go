package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/database"
	"github.com/aristath/propsight/internal/sentiment/news"
)

// MaintenanceJob performs daily housekeeping: database integrity check,
// WAL checkpoint, and the news API quota reset
type MaintenanceJob struct {
	db   *database.DB
	news *news.Client
	log  zerolog.Logger
}

// MaintenanceJobConfig holds configuration for the maintenance job
type MaintenanceJobConfig struct {
	DB   *database.DB
	News *news.Client
	Log  zerolog.Logger
}

// NewMaintenanceJob creates a new daily maintenance job. The news client
// is optional.
func NewMaintenanceJob(cfg MaintenanceJobConfig) *MaintenanceJob {
	return &MaintenanceJob{
		db:   cfg.DB,
		news: cfg.News,
		log:  cfg.Log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Step 1: database integrity check. Corruption is critical.
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("Database integrity check failed")
		return fmt.Errorf("database integrity check failed: %w", err)
	}

	// Step 2: WAL checkpoint to prevent bloat
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		// Not critical, keep going
	}

	// Step 3: reset the news API daily quota and drop cached headlines
	if j.news != nil {
		j.news.ResetDailyCounter()
		j.news.ClearCache()
	}

	// Step 4: report database growth
	if stats, err := j.db.GetStats(); err != nil {
		j.log.Warn().Err(err).Msg("Failed to read database stats")
	} else {
		j.log.Info().
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Msg("Database metrics")
	}

	j.log.Info().
		Dur("duration", time.Since(startTime)).
		Msg("Daily maintenance completed")

	return nil
}
