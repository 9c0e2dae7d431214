package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/reliability"
)

// BackupJob ships a database backup to the configured bucket and rotates
// old archives
type BackupJob struct {
	service       *reliability.BackupService
	retentionDays int
	log           zerolog.Logger
}

// BackupJobConfig holds configuration for the backup job
type BackupJobConfig struct {
	Service       *reliability.BackupService
	RetentionDays int
	Log           zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(cfg BackupJobConfig) *BackupJob {
	return &BackupJob{
		service:       cfg.Service,
		retentionDays: cfg.RetentionDays,
		log:           cfg.Log.With().Str("job", "backup").Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return "backup"
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := j.service.RunBackup(ctx)
	if err != nil {
		return err
	}

	if err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	j.log.Info().
		Str("archive", result.Archive).
		Int64("size_bytes", result.SizeBytes).
		Msg("Backup archived")

	return nil
}
