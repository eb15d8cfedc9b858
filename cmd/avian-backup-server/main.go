// Command avian-backup-server serves the backup HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/api"
	"github.com/AlexZinkM/avian-backup/internal/app"
	"github.com/AlexZinkM/avian-backup/internal/config"
	"github.com/AlexZinkM/avian-backup/internal/handler"
)

// @title        Avian wallet backup API
// @version      1.0
// @description  Create, parse, restore and QR-transfer Avian wallet backups.
// @BasePath     /
func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Get()

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer a.Close()

	h := handler.NewBackupHandler(a.Service, cfg.QRPNGSize, logger.Named("http"))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.SetupRouter(h, cfg.ParseRatePerMin),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("version", app.Version),
			zap.String("storage", cfg.DBDriver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			a.Close()
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
