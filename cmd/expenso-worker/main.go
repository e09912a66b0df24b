package main

import (
	"context"
	"errors"
	"os"
	"time"

	"expenso/internal/cli"
	"expenso/internal/log"
	"expenso/internal/services"
	gsheet "expenso/internal/sheets/google"
	"expenso/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting expenso-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	res := cli.InitBackend(context.Background(), logger, cfg)

	repo, err := res.RequireSQLite()
	if err != nil {
		logger.Error("Worker needs the sqlite session store", log.FieldError, err, "store", cfg.SessionStore)
		os.Exit(1)
	}

	// Jobs and the consumer stop on ctx; the rest is torn down after it.
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	var auditSync *services.AuditSyncProcessor
	if cfg.SheetsAuditEnabled {
		sheetsLogger := logger.WithComponent(log.ComponentSheets).Slog()
		client, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleAuditSheetName,
			OAuthClientFile:    cfg.GoogleOAuthClientFile,
			OAuthTokenFile:     cfg.GoogleOAuthTokenFile,
			ServiceAccountFile: cfg.GoogleServiceAccount,
			Logger:             sheetsLogger,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		auditSync = services.NewAuditSyncProcessor(repo, client, services.AuditSyncConfig{
			BatchSize: cfg.SheetsSyncBatch,
		}, sheetsLogger)
		if err := auditSync.Start(ctx); err != nil {
			logger.Error("Failed to start audit sync", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Audit sync enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleAuditSheetName)
	} else {
		logger.Info("Audit sync disabled")
	}

	if res.Publisher != nil {
		activity := worker.NewActivityWorker(repo, logger.WithComponent(log.ComponentAMQP).Slog())
		go func() {
			if err := res.Publisher.ConsumeActivity(ctx, activity.HandleActivity); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Activity consumption stopped", log.FieldError, err)
			}
		}()
		logger.Info("Consuming activity messages", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("No broker configured, activity consumption disabled")
	}

	sched := worker.NewScheduler(ctx, time.Local, logger.WithComponent(log.ComponentScheduler).Slog())
	mcfg := worker.MaintenanceConfig{
		SessionTTL:        cfg.SessionTTL,
		ActivityRetention: cfg.ActivityRetention,
		KeepUnsynced:      cfg.SheetsAuditEnabled,
	}
	jobs := map[string]worker.Job{
		"purge_sessions": worker.PurgeSessionsJob(repo, mcfg, logger.Slog()),
		"purge_activity": worker.PurgeActivityJob(repo, mcfg, logger.Slog()),
	}
	for name, job := range jobs {
		if _, err := sched.Add(name, cfg.CleanupSchedule, job); err != nil {
			logger.Error("Invalid cleanup schedule", log.FieldError, err, "schedule", cfg.CleanupSchedule)
			os.Exit(1)
		}
		sched.RunNow(name, job)
	}
	sched.Start()
	logger.Info("Maintenance scheduled", "schedule", cfg.CleanupSchedule, "jobs", sched.Entries())

	cli.WaitForShutdown(ctx, done)

	sched.Stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if auditSync != nil {
		if err := auditSync.Stop(stopCtx); err != nil {
			logger.Error("Audit sync stop error", log.FieldError, err)
		}
	}
	if err := res.Close(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	logger.Info("Worker stopped")
}
