package main

import (
	"context"
	"errors"

	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"minshare/internal/amqp"
	"minshare/internal/cli"
	"minshare/internal/config"
	"minshare/internal/core"
	"minshare/internal/log"
	"minshare/internal/services"
	"minshare/internal/sheets"
	gsheet "minshare/internal/sheets/google"
	"minshare/internal/worker"
)

func main() {
	logger := cli.SetupLogger("info")
	cli.LoadEnvFile(logger)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	logger = cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting minshare-worker")

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		cli.Fatal(logger, "Worker error", err)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required for the report worker")
	}
	if !cfg.ReportExportEnabled() {
		return errors.New("GOOGLE_SPREADSHEET_ID is required for the report worker")
	}

	store, err := cli.OpenBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

	var writer sheets.ReportWriter
	writer, err = gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	admin := services.NewAdminService(store, store, nil, services.AdminConfig{Logger: logger})
	w := worker.NewReportWorker(admin, writer, core.NewResolver(cfg.Location()), logger)

	if err := w.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", log.FieldError, err.Error())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.ConsumeStatusChanges(ctx, w.HandleStatusChanged) })
	g.Go(func() error { return w.RunPeriodic(ctx, cfg.ReportInterval) })
	return g.Wait()
}
