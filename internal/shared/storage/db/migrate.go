package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

var gooseInit sync.Once
var gooseInitErr error

func setupGoose() error {
	gooseInit.Do(func() {
		goose.SetBaseFS(migrationFiles)
		gooseInitErr = goose.SetDialect("postgres")
	})
	return gooseInitErr
}

// RunMigrations applies all pending migrations. A nil database is a no-op so
// the in-memory dev mode can share the startup path.
func RunMigrations(ctx context.Context, conn *sql.DB) error {
	if conn == nil {
		return nil
	}
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.UpContext(ctx, conn, migrationsDir)
}

// Migrate runs one goose command ("up", "down", "status", "version") against conn.
func Migrate(ctx context.Context, conn *sql.DB, command string) error {
	if conn == nil {
		return ErrNoDatabaseURL
	}
	if err := setupGoose(); err != nil {
		return err
	}
	switch command {
	case "up":
		return goose.UpContext(ctx, conn, migrationsDir)
	case "down":
		return goose.DownContext(ctx, conn, migrationsDir)
	case "status":
		return goose.StatusContext(ctx, conn, migrationsDir)
	case "version":
		return goose.VersionContext(ctx, conn, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
}
