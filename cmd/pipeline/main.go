package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"visits-pipeline/internal/config"
	"visits-pipeline/internal/logging"
	"visits-pipeline/internal/pipeline"
	"visits-pipeline/internal/sheets"
	"visits-pipeline/internal/store"
	"visits-pipeline/internal/warehouse"
	"visits-pipeline/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("Pipeline failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init warehouse client
	wh, err := warehouse.NewBigQuery(ctx, cfg.WarehouseProject, cfg.WarehouseCredentials)
	if err != nil {
		return err
	}
	defer wh.Close()

	// Run history is optional
	var recorder pipeline.Recorder = store.Discard{}
	if cfg.RunDB != "" {
		db, err := store.Open(cfg.RunDB)
		if err != nil {
			return err
		}
		defer db.Close()
		recorder = db
	}

	runner := &pipeline.Runner{
		Config:    cfg,
		Warehouse: wh,
		OpenSpreadsheet: func(ctx context.Context) (pipeline.Spreadsheet, error) {
			return sheets.Open(ctx, cfg.SheetLink, cfg.SheetCredentials)
		},
		Recorder: recorder,
		Logger:   logger,
	}
	if cfg.ExportDir != "" {
		runner.Output = utils.NewOutputManager(cfg.ExportDir)
	}

	runID, err := runner.Run(ctx)
	if err != nil {
		logger.WithField("run_id", runID).WithError(err).Error("Run failed")
		return err
	}
	logger.WithField("run_id", runID).Info("Pipeline completed")
	return nil
}
