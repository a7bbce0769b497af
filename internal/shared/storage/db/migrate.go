package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"justice-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// RunMigrations brings the workflow schema up to date and returns the schema
// version it ends on. A nil database is a no-op at version 0.
func RunMigrations(ctx context.Context, database *sql.DB) (int64, error) {
	if database == nil {
		return 0, nil
	}
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, err
	}
	if err := goose.UpContext(ctx, database, migrationsDir); err != nil {
		return 0, fmt.Errorf("migrate workflow schema: %w", err)
	}
	version, err := goose.GetDBVersion(database)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	telemetry.Info("db.migrated", map[string]any{"version": version})
	return version, nil
}

// gooseLogger sends goose progress lines to telemetry at debug level.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	telemetry.Debug("db.migration", map[string]any{"detail": strings.TrimSpace(fmt.Sprintf(format, v...))})
}

func (l gooseLogger) Print(v ...any)   { l.Printf("%s", fmt.Sprint(v...)) }
func (l gooseLogger) Println(v ...any) { l.Printf("%s", fmt.Sprintln(v...)) }

// Fatalf logs without exiting.
func (gooseLogger) Fatalf(format string, v ...any) {
	telemetry.Error("db.migration_fatal", map[string]any{"detail": fmt.Sprintf(format, v...)})
}

func (l gooseLogger) Fatal(v ...any) { l.Fatalf("%s", fmt.Sprint(v...)) }
