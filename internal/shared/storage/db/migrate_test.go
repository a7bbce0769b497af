package db

import (
	"bytes"
	"context"
	"io/fs"
	"strings"
	"testing"

	"justice-backend/internal/shared/telemetry"
)

func TestEmbeddedMigrationsAreGooseFiles(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected embedded migrations")
	}
	tables := map[string]bool{}
	for _, e := range entries {
		raw, err := fs.ReadFile(migrationFiles, "migrations/"+e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s missing goose annotations", e.Name())
		}
		for _, table := range []string{"workflow_records", "workflow_tasks"} {
			if strings.Contains(body, "CREATE TABLE IF NOT EXISTS "+table) {
				tables[table] = true
			}
		}
	}
	if !tables["workflow_records"] || !tables["workflow_tasks"] {
		t.Fatalf("expected workflow tables in migrations, got %v", tables)
	}
}

func TestRunMigrationsNilDatabase(t *testing.T) {
	version, err := RunMigrations(context.Background(), nil)
	if err != nil || version != 0 {
		t.Fatalf("expected nil database to be a no-op, got %d %v", version, err)
	}
}

func TestGooseLoggerWritesTelemetry(t *testing.T) {
	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	telemetry.SetLevel("debug")
	t.Cleanup(func() {
		telemetry.SetLevel("info")
		telemetry.SetOutput(nil)
	})

	var l gooseLogger
	l.Printf("OK   %s\n", "00001_workflow.sql")
	l.Fatalf("failed to apply %s", "00002_tasks.sql")

	out := buf.String()
	if !strings.Contains(out, `"msg":"db.migration"`) || !strings.Contains(out, `"detail":"OK   00001_workflow.sql"`) {
		t.Fatalf("expected progress line, got %s", out)
	}
	if !strings.Contains(out, `"msg":"db.migration_fatal"`) {
		t.Fatalf("expected fatal line to be logged, got %s", out)
	}
}
