package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var migrations embed.FS

// goose keeps dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Migrate applies every pending migration for the dialect.
func Migrate(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	dir, err := migrationDir(dialect)
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Version reports the schema version currently applied.
func Version(db *sql.DB, dialect string) (int64, error) {
	if _, err := migrationDir(dialect); err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

func migrationDir(dialect string) (string, error) {
	switch dialect {
	case DialectSQLite, DialectPostgres:
		return "migrations/" + dialect, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", dialect)
}
