package database

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Options describes how to reach the lot table.
type Options struct {
	Driver     string // mysql | sqlite
	User       string
	Pass       string
	Host       string
	Port       string
	Name       string
	SQLitePath string
	Migrate    bool // create the lotes table when missing
}

// Open connects to MySQL or SQLite, verifies the connection and
// optionally bootstraps the lotes table.
func Open(opts Options) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch opts.Driver {
	case DriverMySQL:
		auth := opts.User
		if opts.Pass != "" {
			auth = fmt.Sprintf("%s:%s", opts.User, opts.Pass)
		}
		// clientFoundRows=true -> RowsAffected counts matched rows, so an
		// update that rewrites identical values is not mistaken for a miss
		dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, opts.Host, opts.Port, opts.Name)
		db, err = sqlx.Open(DriverMySQL, dsn)
		if err != nil {
			return nil, err
		}
		// Pool settings
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	case DriverSQLite:
		if dir := filepath.Dir(opts.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sqlx.Open(DriverSQLite, opts.SQLitePath+"?_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, err
		}
		// a single writer avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", opts.Driver)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if opts.Migrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return db, nil
}

// Migrate executes the embedded schema for the connection's driver.
// Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	schema, err := schemaFS.ReadFile("schema/" + db.DriverName() + ".sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	return nil
}
