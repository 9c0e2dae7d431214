package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/propsight/internal/forecast"
	"github.com/aristath/propsight/internal/hpi"
)

// RefreshJob reloads the house price index from its CSV source, refits the
// forecast model, and mirrors the observations into the database
type RefreshJob struct {
	session *forecast.Session
	repo    *hpi.Repository
	csvPath string
	log     zerolog.Logger
}

// RefreshJobConfig holds configuration for the refresh job
type RefreshJobConfig struct {
	Session *forecast.Session
	Repo    *hpi.Repository
	CSVPath string
	Log     zerolog.Logger
}

// NewRefreshJob creates a new index refresh job
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	return &RefreshJob{
		session: cfg.Session,
		repo:    cfg.Repo,
		csvPath: cfg.CSVPath,
		log:     cfg.Log.With().Str("job", "index_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "index_refresh"
}

// Run reloads the series from disk and stores the observations
func (j *RefreshJob) Run() error {
	if err := j.session.Load(j.csvPath); err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}

	series := j.session.Series()
	if err := j.repo.Replace(series); err != nil {
		return fmt.Errorf("failed to store observations: %w", err)
	}

	j.log.Info().
		Int("observations", series.Len()).
		Time("last_quarter", series.Last().Date).
		Msg("Index refreshed")

	return nil
}
