package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Times are stored as fixed-width UTC strings so lexicographic ordering
// in SQL matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Open opens the SQLite database at path, creating the file if needed.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return conn, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS zones (
		zone_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		boiler_relay TEXT NOT NULL,
		sensor_id INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS sensors (
		sensor_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		locator TEXT NOT NULL,
		zone INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS schedule (
		day INTEGER NOT NULL,
		starttime TEXT NOT NULL,
		zone INTEGER NOT NULL,
		temp REAL NOT NULL,
		UNIQUE(day, starttime, zone)
	)`,
	`CREATE TABLE IF NOT EXISTS override (
		zone INTEGER PRIMARY KEY,
		temp REAL NOT NULL,
		until TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sensor_readings (
		sensor_id INTEGER NOT NULL,
		metric_type TEXT NOT NULL,
		time TEXT NOT NULL,
		value REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS gradient_measurements (
		zone INTEGER NOT NULL,
		"when" TEXT NOT NULL,
		delta REAL NOT NULL,
		gradient REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS device_reported_state (
		zone INTEGER NOT NULL,
		received TEXT NOT NULL,
		state TEXT,
		target REAL,
		current_temp REAL,
		time_to_target REAL,
		current_outside_temp REAL,
		dutycycle REAL
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		device_id INTEGER PRIMARY KEY,
		secret_salt TEXT NOT NULL,
		secret_hash TEXT NOT NULL
	)`,
}

// Migrate creates any missing tables.
func Migrate(conn *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration: %w", err)
		}
	}
	log.Debug().Msg("Database schema up to date")
	return nil
}
