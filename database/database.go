// Package database persists pending deletions in SQLite so scheduled
// work survives process restarts.
package database

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// ScheduleRecord is a pending deletion as persisted: delete Path once
// ExpireAt (Unix seconds) has passed. The store assigns ID. Duplicate
// records for the same path are legal; each expires independently.
type ScheduleRecord struct {
	ID       int64
	Path     string
	Name     string
	ExpireAt int64
}

// DB is the schedule store. It is written by the persistence loop and
// read+deleted by the cleanup loop; a single connection behind a mutex
// serializes them.
type DB struct {
	mu sync.Mutex
	db *sql.DB
}

// NewDB opens (creating if necessary) the schedule store at path.
// ":memory:" is accepted for tests.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection total; the pool must not hand each goroutine its
	// own (an in-memory database per connection otherwise).
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS schedules (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		path      TEXT NOT NULL,
		name      TEXT NOT NULL,
		expire_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_expire_at ON schedules(expire_at);"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Insert persists a pending deletion and returns its store-assigned id.
func (d *DB) Insert(path, name string, expireAt int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.Exec(
		"INSERT INTO schedules (path, name, expire_at) VALUES (?, ?, ?)",
		path, name, expireAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting schedule for %s: %w", path, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading schedule id: %w", err)
	}
	return id, nil
}

// ListDue returns every record whose expire_at is at or before now.
// Order is unspecified.
func (d *DB) ListDue(now int64) ([]ScheduleRecord, error) {
	return d.list("SELECT id, path, name, expire_at FROM schedules WHERE expire_at <= ?", now)
}

// ListPending returns up to limit records ordered by soonest expiry.
// Backs the status API only.
func (d *DB) ListPending(limit int) ([]ScheduleRecord, error) {
	return d.list("SELECT id, path, name, expire_at FROM schedules ORDER BY expire_at ASC LIMIT ?", limit)
}

func (d *DB) list(query string, arg interface{}) ([]ScheduleRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	var records []ScheduleRecord
	for rows.Next() {
		var rec ScheduleRecord
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Name, &rec.ExpireAt); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	return records, nil
}

// Remove deletes the record with the given id. Removing an id that is
// already gone is not an error.
func (d *DB) Remove(id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.db.Exec("DELETE FROM schedules WHERE id = ?", id); err != nil {
		return fmt.Errorf("removing schedule %d: %w", id, err)
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.db.Close()
}
