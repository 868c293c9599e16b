package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// FS holds the SQL migrations, one directory per goose dialect
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS

// gooseLogger routes goose output through zap
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.sugar.Fatalf(format, v...)
}

// Setup points goose at the embedded migrations for the given dialect
// ("postgres" or "sqlite3") and returns the directory to pass to goose.
func Setup(dialect string, logger *zap.Logger) (string, error) {
	if err := goose.SetDialect(dialect); err != nil {
		return "", fmt.Errorf("failed to set goose dialect: %w", err)
	}
	goose.SetBaseFS(FS)
	if logger != nil {
		goose.SetLogger(gooseLogger{sugar: logger.Sugar()})
	}
	return dialect, nil
}

// Up applies every pending migration
func Up(ctx context.Context, db *sql.DB, dialect string, logger *zap.Logger) error {
	dir, err := Setup(dialect, logger)
	if err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
