// Package app wires configuration, storage and the backup service together
// for the command line tool and the HTTP server.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AlexZinkM/avian-backup/internal/backup"
	"github.com/AlexZinkM/avian-backup/internal/config"
	"github.com/AlexZinkM/avian-backup/internal/crypto"
	"github.com/AlexZinkM/avian-backup/internal/storage"
	"github.com/AlexZinkM/avian-backup/internal/storage/memory"
	"github.com/AlexZinkM/avian-backup/internal/storage/postgres"
	"github.com/AlexZinkM/avian-backup/internal/storage/sqlite"
)

// Version is stamped into every backup this build creates.
var Version = "1.0.0"

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Store   *storage.Store
	Service *backup.Service
}

// New opens the configured storage and builds the backup service on it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	box, err := crypto.NewBox(cfg.CryptoParams())
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	store := storage.New(backend, logger.Named("storage"))

	svc := backup.NewService(store, box, backup.Options{
		AppVersion:      Version,
		MaxChunkPayload: cfg.MaxChunkPayload,
	}, logger.Named("backup"))

	return &App{Config: cfg, Logger: logger, Store: store, Service: svc}, nil
}

// OpenBackend opens the storage backend named by cfg.DBDriver.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.DBDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		b, err := sqlite.Open(ctx, cfg.DBDSN, logger.Named("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return b, nil
	case config.DriverPostgres:
		b, err := postgres.Open(ctx, cfg.DBDSN, logger.Named("postgres"))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.DBDriver)
}

func (a *App) Close() error {
	return a.Store.Close()
}
