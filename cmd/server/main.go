package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RichardoC/insurance-assistant/internal/api"
	"github.com/RichardoC/insurance-assistant/internal/app"
	"github.com/RichardoC/insurance-assistant/internal/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger, _ := zap.NewProduction()
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize assistant", zap.Error(err))
	}

	handler := api.NewHandler(a.Engine, a.DB, a.Knowledge, a.Whisper, logger)
	mux := http.NewServeMux()
	handler.Register(mux, cfg.StaticDir)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.ListenAddr), zap.String("model", cfg.Model))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("failed to start server", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := multierr.Combine(srv.Shutdown(shutdownCtx), a.Close()); err != nil {
		logger.Error("unclean shutdown", zap.Error(err))
	}
}
