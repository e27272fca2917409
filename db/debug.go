package db

import (
	"fmt"
)

// Admin helpers for the debug CLI. Each opens the database by path so the
// tool can point at a service's database file directly.

func AddZoneCLI(dbPath, name, relay string, sensorID int) (int, error) {
	dbConn, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer dbConn.Close()
	if err := Migrate(dbConn); err != nil {
		return 0, err
	}

	tx, err := StartTransaction(dbConn)
	if err != nil {
		return 0, err
	}
	var sensor any
	if sensorID != 0 {
		sensor = sensorID
	}
	res, err := tx.Exec(`INSERT INTO zones (name, boiler_relay, sensor_id) VALUES (?, ?, ?)`,
		name, relay, sensor)
	if err != nil {
		RollbackTransaction(tx)
		return 0, fmt.Errorf("insert zone: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		RollbackTransaction(tx)
		return 0, err
	}
	if sensorID != 0 {
		if _, err := tx.Exec(`UPDATE sensors SET zone = ? WHERE sensor_id = ?`, id, sensorID); err != nil {
			RollbackTransaction(tx)
			return 0, fmt.Errorf("link sensor to zone: %w", err)
		}
	}
	if err := CommitTransaction(tx); err != nil {
		return 0, err
	}
	return int(id), nil
}

func AddSensorCLI(dbPath, name, locator string) (int, error) {
	dbConn, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer dbConn.Close()
	if err := Migrate(dbConn); err != nil {
		return 0, err
	}

	res, err := dbConn.Exec(`INSERT INTO sensors (name, locator) VALUES (?, ?)`, name, locator)
	if err != nil {
		return 0, fmt.Errorf("insert sensor: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// AddDeviceCLI stores credentials for a device, replacing any previous
// secret for the same ID.
func AddDeviceCLI(dbPath string, id int, salt, hash string) error {
	dbConn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	if err := Migrate(dbConn); err != nil {
		return err
	}

	_, err = dbConn.Exec(`INSERT OR REPLACE INTO devices (device_id, secret_salt, secret_hash) VALUES (?, ?, ?)`,
		id, salt, hash)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}
