package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// NewSQLite opens the embedded store and applies its schema. Pass an empty
// path for a private in-memory database.
func NewSQLite(path string) (*sqlx.DB, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:?_time_format=sqlite"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = path + "?_time_format=sqlite&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection: SQLite serializes writers, and each :memory: connection
	// would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	scripts, err := loadMigrations(sqliteMigrationsDir)
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, script := range scripts {
		if _, err := db.Exec(script.sql); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite migration %s: %w", script.name, err)
		}
	}
	return db, nil
}
