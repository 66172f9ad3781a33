package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"minshare/internal/allocation"
	"minshare/internal/amqp"
	"minshare/internal/cli"
	"minshare/internal/config"
	"minshare/internal/core"
	"minshare/internal/events"
	apphttp "minshare/internal/http"
	"minshare/internal/log"
	"minshare/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := cli.SetupLogger("info")
	cli.LoadEnvFile(logger)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}
	logger = cli.SetupLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		cli.Fatal(logger, "Server error", err)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	store, err := cli.OpenBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := events.NewHub()
	engine := allocation.New(store, hub, allocation.Config{
		RequiredMinimum: cfg.Minimum(),
		Resolver:        core.NewResolver(cfg.Location()),
		Logger:          logger,
	})

	admin := services.NewAdminService(store, store, engine, services.AdminConfig{Logger: logger})
	admin.Subscribe(hub)
	profiles := services.NewProfileService(store, logger,
		services.OnProfileSaved(func(core.Profile) { admin.InvalidateAll() }))
	contacts := services.NewContactService(store, logger)

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change feed", log.FieldError, err.Error())
		} else {
			defer client.Close()
			fwd := amqp.NewForwarder(client, 0, logger)
			fwd.Attach(hub)
			g.Go(func() error { return fwd.Run(ctx) })
			logger.Info("Change feed enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		Engine:    engine,
		Admin:     admin,
		Profiles:  profiles,
		Contacts:  contacts,
		Allowlist: cfg.Allowlist(),
		Ready:     store.Ping,
		Logger:    logger,
	})

	g.Go(func() error {
		logger.Info("Starting minshare server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"required_minimum", cfg.Minimum().String(),
			"timezone", cfg.Location().String(),
			"admins", cfg.Allowlist().Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		return nil
	})

	return g.Wait()
}
