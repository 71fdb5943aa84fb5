package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/api"
	"github.com/mcoot/gamestore-lobby/internal/config"
	"github.com/mcoot/gamestore-lobby/internal/factory"
	"github.com/mcoot/gamestore-lobby/internal/server"
)

// shutdownTimeout bounds how long connections and workers get to wind down
const shutdownTimeout = 15 * time.Second

func main() {
	settings, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	level, err := config.ParseLogLevel(settings.LogLevel)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := factory.New(ctx, factory.Config{
		Settings: settings,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 2)
	go func() {
		errCh <- app.Server.ListenAndServe()
	}()

	// The admin API is optional and only served when an address is set
	var admin *api.Server
	if settings.AdminAddr != "" {
		adminCfg := api.DefaultServerConfig()
		adminCfg.Addr = settings.AdminAddr
		admin = api.NewServer(app.Admin, adminCfg, logger)
		go func() {
			errCh <- admin.Start()
		}()
	}

	logger.Info("lobby started",
		slog.String("addr", settings.ListenAddr),
		slog.String("admin_addr", settings.AdminAddr),
		slog.String("storage", settings.Storage.Type),
	)

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, server.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin shutdown error", slog.String("error", err.Error()))
			exitCode = 1
		}
	}
	if err := app.Close(shutdownCtx); err != nil {
		logger.Error("failed to close application", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		stop()
		os.Exit(exitCode)
	}
}
