package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/jb/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the database file inside the jb home directory.
const FileName = "jb.db"

// migrations holds the schema steps in order; step i takes user_version
// from i to i+1. Append only.
var migrations = []string{
	// 1: recently opened journals, most recent first by seq.
	`CREATE TABLE IF NOT EXISTS recent_files (
	  path          TEXT PRIMARY KEY,
	  title         TEXT NOT NULL,
	  last_modified INTEGER NOT NULL,
	  seq           INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recent_files_seq ON recent_files(seq DESC);`,
}

// CurrentSchemaVersion is the user_version a fully migrated database has.
var CurrentSchemaVersion = len(migrations)

// Init opens the process-wide database under the jb home directory
// (normally ~/.jb), creating the directory, its exports folder and the
// schema as needed. Journals themselves live in .jb files; the database only
// keeps state shared across them.
func Init(homeDir string) (*sql.DB, error) {
	for _, dir := range []string{homeDir, filepath.Join(homeDir, "exports")} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		_ = os.Chmod(dir, 0700)
	}

	dbPath := filepath.Join(homeDir, FileName)
	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := checkWAL(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies the configured pool limits. Zero values keep the
// database/sql defaults.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate runs the steps the database has not seen yet, each in its own
// transaction together with its user_version bump.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema v%d is newer than this jb supports (v%d)", version, CurrentSchemaVersion)
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", v+1, err)
		}
	}
	return nil
}

func checkWAL(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		return fmt.Errorf("read journal mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("expected WAL journal mode, got %s", mode)
	}
	return nil
}

// GetUserVersion returns the schema version stored in the database.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion overwrites the stored schema version.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
