// internal/database/schema.go
// Database schema and migration logic for the memcal calendar relay
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const Schema = `
-- Feeds table
CREATE TABLE IF NOT EXISTS feeds (
    id INTEGER PRIMARY KEY,
    url TEXT NOT NULL,
    manage_secret TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Calendars table: one document envelope per feed, replaced in full on
-- every successful sync. Transition columns are verbatim source text.
CREATE TABLE IF NOT EXISTS calendars (
    feed_id INTEGER PRIMARY KEY,
    version TEXT NOT NULL,
    prod_id TEXT NOT NULL,
    cal_scale TEXT NOT NULL,
    name TEXT,
    tz_id TEXT NOT NULL,
    daylight_dtstart TEXT,
    daylight_tzoffsetfrom TEXT,
    daylight_tzoffsetto TEXT,
    daylight_rrule TEXT,
    daylight_tzname TEXT,
    standard_dtstart TEXT,
    standard_tzoffsetfrom TEXT,
    standard_tzoffsetto TEXT,
    standard_rrule TEXT,
    standard_tzname TEXT,
    FOREIGN KEY (feed_id) REFERENCES feeds(id) ON DELETE CASCADE
);

-- Events table. The UNIQUE constraint is the merge identity: sync upserts
-- against it and never deletes rows.
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    feed_id INTEGER NOT NULL,
    summary TEXT NOT NULL,
    description TEXT,
    start_time TEXT NOT NULL,
    start_tz TEXT NOT NULL,
    end_time TEXT NOT NULL,
    end_tz TEXT NOT NULL,
    location TEXT,
    uid TEXT NOT NULL DEFAULT '',
    dtstamp TEXT NOT NULL,
    dtstamp_tz TEXT NOT NULL,
    organizer TEXT,
    organizer_cn TEXT,
    sequence INTEGER,
    status TEXT,
    FOREIGN KEY (feed_id) REFERENCES feeds(id) ON DELETE CASCADE,
    UNIQUE(feed_id, start_time, start_tz, end_time, end_tz)
);`

const Indexes = `
-- Event indexes
CREATE INDEX IF NOT EXISTS idx_events_feed_start ON events(feed_id, start_time DESC);`

// DB represents our database connection and operations
type DB struct {
	*sql.DB
}

// Configuration for the database
type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns the default database configuration
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// NewDB creates a new database connection with optimized settings
func NewDB(dbPath string, cfg Config) (*DB, error) {
	// Add query parameters to optimize SQLite performance
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON&_synchronous=NORMAL",
		dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	return &DB{db}, nil
}

func createSchema(db *sql.DB) error {
	if _, err := db.Exec(`
        PRAGMA journal_mode=WAL;
        PRAGMA foreign_keys=ON;
        PRAGMA synchronous=NORMAL;
        PRAGMA cache_size=10000;
        PRAGMA temp_store=MEMORY;
    `); err != nil {
		return fmt.Errorf("error setting pragmas: %w", err)
	}

	// Start transaction for table creation
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Create tables within transaction
	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}

	// Commit transaction to ensure tables are created
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing schema: %w", err)
	}

	// Check and add columns if missing. Organizer and status fields were
	// added to the events table after the first release.
	columnUpdates := []struct {
		table, column, definition string
	}{
		{"events", "organizer", "TEXT"},
		{"events", "organizer_cn", "TEXT"},
		{"events", "sequence", "INTEGER"},
		{"events", "status", "TEXT"},
	}

	for _, col := range columnUpdates {
		exists, err := columnExists(db, col.table, col.column)
		if err != nil {
			return fmt.Errorf("error checking column %s.%s: %w", col.table, col.column, err)
		}
		if !exists {
			_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
				col.table, col.column, col.definition))
			if err != nil {
				return fmt.Errorf("error adding column %s.%s: %w", col.table, col.column, err)
			}
		}
	}

	// Create indexes after tables are committed
	if _, err := db.Exec(Indexes); err != nil {
		return fmt.Errorf("error creating indexes: %w", err)
	}

	return nil
}

func columnExists(db *sql.DB, tableName, columnName string) (bool, error) {
	query := fmt.Sprintf("PRAGMA table_info(%s);", tableName)
	rows, err := db.Query(query)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt_value sql.NullString
		var pk int

		err = rows.Scan(&cid, &name, &ctype, &notnull, &dflt_value, &pk)
		if err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}
