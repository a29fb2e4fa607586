package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Connect opens the database selected by driver and returns its dialect.
// Postgres needs databaseURL; SQLite uses sqlitePath.
func Connect(driver, databaseURL, sqlitePath string) (*sql.DB, Dialect, error) {
	dialect, ok := ParseDialect(driver)
	if !ok {
		return nil, "", fmt.Errorf("connect: unknown database driver %q", driver)
	}

	if dialect == Postgres {
		if strings.TrimSpace(databaseURL) == "" {
			return nil, "", fmt.Errorf("connect: DATABASE_URL is required for %s", driver)
		}
		conn, err := Open(databaseURL)
		return conn, dialect, err
	}

	conn, err := OpenSQLite(sqlitePath)
	return conn, dialect, err
}

// Open connects to Postgres through the pgx stdlib driver.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("openDB: open postgres database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify postgres connection: %w", err)
	}

	return db, nil
}

// OpenSQLite opens a SQLite database file, or an in-memory one for ":memory:".
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("openDB: open sqlite database %q: %w", path, err)
	}
	// SQLite serializes writers; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("openDB: verify sqlite connection to %q: %w", path, err)
	}

	return db, nil
}
