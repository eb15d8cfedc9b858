package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration found in dir of fsys.
func Migrate(ctx context.Context, db *sql.DB, dialect string, fsys fs.FS, dir string, logger *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetLogger(gooseLogger{l: logger.Sugar()})
	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Fatalf(format string, v ...any) { g.l.Errorf(format, v...) }
func (g gooseLogger) Printf(format string, v ...any) { g.l.Debugf(format, v...) }
