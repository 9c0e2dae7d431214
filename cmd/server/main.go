// Package main is the entry point for the PropSight property risk service.
//
// The application loads a quarterly house price index from CSV, fits a
// forecasting model over it, and serves market summaries, forecasts and
// composite risk assessments over a REST API. Background jobs keep the
// index fresh, run daily database maintenance and ship database backups
// to S3-compatible storage.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/propsight/internal/assessments"
	"github.com/aristath/propsight/internal/config"
	"github.com/aristath/propsight/internal/database"
	"github.com/aristath/propsight/internal/forecast"
	"github.com/aristath/propsight/internal/hpi"
	"github.com/aristath/propsight/internal/reliability"
	"github.com/aristath/propsight/internal/scheduler"
	"github.com/aristath/propsight/internal/sentiment"
	"github.com/aristath/propsight/internal/sentiment/news"
	"github.com/aristath/propsight/internal/server"
	"github.com/aristath/propsight/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting PropSight")

	// Open the service database and apply migrations before anything else
	// touches it.
	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	hpiRepo := hpi.NewRepository(db.Conn(), log)
	assessmentRepo := assessments.NewRepository(db.Conn(), log)

	session := forecast.NewSession(forecast.Order{
		P: cfg.Forecast.P,
		D: cfg.Forecast.D,
		Q: cfg.Forecast.Q,
	}, log)

	// News-backed sentiment is optional. Without an API key the scorer
	// falls back to the neutral signal.
	var newsClient *news.Client
	var analyzer sentiment.Analyzer
	if cfg.Sentiment.NewsAPIKey != "" {
		newsClient = news.NewClient(cfg.Sentiment.NewsAPIKey, log)
		newsClient.SetBaseURL(cfg.Sentiment.NewsAPIURL)
		analyzer = news.NewAnalyzer(newsClient, sentiment.NewLexiconAnalyzer(log), log)
		log.Info().Msg("News sentiment analyzer enabled")
	} else {
		log.Warn().Msg("NEWS_API_KEY not set, sentiment falls back to neutral")
	}

	assessmentService := assessments.NewService(
		assessmentRepo,
		session,
		analyzer,
		cfg.Forecast.Horizon,
		cfg.Risk.DefaultLocationFactor,
		cfg.Sentiment.Topic,
		log,
	)

	// Prime the session from the CSV source. When the source is missing or
	// unreadable, observations stored by the last successful refresh keep
	// the forecast available.
	refreshJob := scheduler.NewRefreshJob(scheduler.RefreshJobConfig{
		Session: session,
		Repo:    hpiRepo,
		CSVPath: cfg.CSVPath,
		Log:     log,
	})
	if err := refreshJob.Run(); err != nil {
		log.Warn().Err(err).Msg("Initial index refresh failed, falling back to stored observations")
		if stored, repoErr := hpiRepo.All(); repoErr != nil {
			log.Error().Err(repoErr).Msg("Failed to read stored observations")
		} else if stored.Len() > 0 {
			session.SetSeries(stored)
			log.Info().Int("observations", stored.Len()).Msg("Session primed from stored observations")
		}
	}

	// Background jobs: index refresh, daily maintenance, and backups when
	// configured.
	sched := scheduler.New(log)

	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule index refresh")
	}

	maintenanceJob := scheduler.NewMaintenanceJob(scheduler.MaintenanceJobConfig{
		DB:   db,
		News: newsClient,
		Log:  log,
	})
	if err := sched.AddJob(cfg.MaintenanceSchedule, maintenanceJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule maintenance")
	}

	if cfg.Backup != nil && cfg.Backup.Enabled {
		store, err := reliability.NewS3Client(
			cfg.Backup.Endpoint,
			cfg.Backup.Region,
			cfg.Backup.AccessKeyID,
			cfg.Backup.SecretAccessKey,
			cfg.Backup.Bucket,
			log,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize backup storage")
		}

		backupService := reliability.NewBackupService(db, store, cfg.DataDir, cfg.Backup.Prefix, log)
		backupJob := scheduler.NewBackupJob(scheduler.BackupJobConfig{
			Service:       backupService,
			RetentionDays: cfg.Backup.RetentionDays,
			Log:           log,
		})
		if err := sched.AddJob(cfg.Backup.Schedule, backupJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule backups")
		}
		log.Info().Str("bucket", cfg.Backup.Bucket).Msg("Backups enabled")
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		DB:          db,
		Session:     session,
		Assessments: assessmentService,
		RefreshJob:  refreshJob,
		Horizon:     cfg.Forecast.Horizon,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	// The HTTP server gets up to 10 seconds to finish in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
