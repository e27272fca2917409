package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/schedule"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

// AddScheduleEntry inserts a programme entry, replacing any existing entry
// for the same zone at the same time.
func AddScheduleEntry(db *sql.DB, e schedule.Entry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO schedule (day, starttime, zone, temp) VALUES (?, ?, ?, ?)`,
		e.Day, e.At.String(), e.Zone, e.Temp)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert schedule entry: %w", err)
	}
	return tx.Commit()
}

// RemoveScheduleEntry deletes the programme entry for a zone at a given
// day and time, if one exists.
func RemoveScheduleEntry(db *sql.DB, e schedule.Entry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM schedule WHERE day = ? AND starttime = ? AND zone = ?`,
		e.Day, e.At.String(), e.Zone)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	return tx.Commit()
}

// SetOverride replaces the override for a zone. A zone holds at most one
// override, so any previous one is removed first.
func SetOverride(db *sql.DB, o schedule.Override) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM override WHERE zone = ?`, o.Zone)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("clear previous override: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO override (zone, temp, until) VALUES (?, ?, ?)`,
		o.Zone, o.Temp, o.Until.Format(schedule.OverrideTimeLayout))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert override: %w", err)
	}
	return tx.Commit()
}

// ClearOverride removes the override for a zone, if any.
func ClearOverride(db *sql.DB, zone int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM override WHERE zone = ?`, zone)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("delete override: %w", err)
	}
	return tx.Commit()
}

// AddGradientMeasurement records one heating rate observation for a zone.
func AddGradientMeasurement(db *sql.DB, zone int, m model.GradientMeasurement) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO gradient_measurements (zone, "when", delta, gradient) VALUES (?, ?, ?, ?)`,
		zone, m.When.UTC().Format(timeLayout), m.Delta, m.Gradient)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert gradient measurement: %w", err)
	}
	return tx.Commit()
}

// SetReportedState stores a device state report for a zone. The caller
// stamps s.Received.
func SetReportedState(db *sql.DB, zone int, s model.DeviceState) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`
		INSERT INTO device_reported_state
			(zone, received, state, target, current_temp, time_to_target, current_outside_temp, dutycycle)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		zone, s.Received.UTC().Format(timeLayout), s.State, s.Target, s.CurrentTemp,
		s.TimeToTarget, s.CurrentOutsideTemp, s.DutyCycle)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert reported state: %w", err)
	}
	return tx.Commit()
}

// AddReading records a sensor reading.
func AddReading(db *sql.DB, sensorID int, metric string, when time.Time, value float64) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO sensor_readings (sensor_id, metric_type, time, value) VALUES (?, ?, ?, ?)`,
		sensorID, metric, when.UTC().Format(timeLayout), value)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert sensor reading: %w", err)
	}
	return tx.Commit()
}
