package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finrecords/internal/backend"
	"finrecords/internal/cli"
	"finrecords/internal/config"
	apphttp "finrecords/internal/http"
	"finrecords/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).Validate)

	logger.Info("Starting finrecords-server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp_enabled", cfg.AMQPEnabled())

	res, err := backend.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.LogError(context.Background(), "Failed to initialize backend", err, log.OpStartup, nil)
		os.Exit(1)
	}

	opts := []apphttp.Option{apphttp.WithListCache(cfg.ListCacheSize, cfg.ListCacheTTL)}
	if res.Publisher != nil {
		opts = append(opts, apphttp.WithPublisher(res.Publisher))
	}
	srv := apphttp.NewServer(":"+cfg.Port, res.Store, logger, opts...)
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err.Error())
		}
	})

	logger.Info("Server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	<-ctx.Done()
	<-done
}
