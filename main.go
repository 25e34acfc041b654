package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kevinaaaquil/circulation/app"
	"github.com/kevinaaaquil/circulation/config"
	"github.com/kevinaaaquil/circulation/handlers"
	"github.com/kevinaaaquil/circulation/identity"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	s, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := app.NewEngine(cfg, s, logger)
	created, err := engine.EnsureBootstrapAdmin(ctx, cfg.AuthEmail, cfg.AuthPass, cfg.AuthBranch)
	if err != nil {
		return err
	}
	if created {
		logger.Info("bootstrap admin created", slog.String("email", cfg.AuthEmail))
	}

	reports, err := app.NewReports(ctx, cfg, engine, logger)
	if err != nil {
		return err
	}

	r := handlers.NewRouter(handlers.Deps{
		Engine:      engine,
		Oracle:      identity.NewJWTOracle(cfg.JWTSecret, s, identity.WithLookupTimeout(cfg.StoreTimeout)),
		Reports:     reports,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		AccessLog:   true,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", slog.Any("error", err))
	}
	return nil
}
