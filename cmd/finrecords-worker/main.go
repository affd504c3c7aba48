package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finrecords/internal/amqp"
	"finrecords/internal/cli"
	"finrecords/internal/config"
	"finrecords/internal/log"
	"finrecords/internal/sheets"
	gsheet "finrecords/internal/sheets/google"
	"finrecords/internal/sheets/memory"
	"finrecords/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger = logger.WithComponent(log.ComponentWorker)

	logger.Info("Starting finrecords-worker",
		"queue", cfg.AMQPQueue,
		"sync_interval", cfg.SyncInterval,
		"batch_size", cfg.SyncBatchSize)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var mirror sheets.RecordMirror
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
		if err != nil {
			logger.LogError(context.Background(), "Failed to initialize Google Sheets client", err, log.OpStartup, nil)
			os.Exit(1)
		}
		mirror = client
		logger.Info("Google Sheets mirror initialized",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.GoogleSheetName)
	} else {
		mirror = memory.New()
		logger.Info("Google Sheets disabled, mirroring in memory - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize AMQP client", err, log.OpStartup, nil)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(repo, mirror, cfg.SyncBatchSize, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeChanges(gctx, syncWorker.HandleChange)
	})
	g.Go(func() error {
		return syncWorker.RunPendingSweep(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err.Error())
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}
