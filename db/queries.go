package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/boilerio/boilerio/internal/model"
	"github.com/boilerio/boilerio/internal/schedule"
)

// GetZones retrieves all zones.
func GetZones(db *sql.DB) ([]model.Zone, error) {
	rows, err := db.Query(`SELECT zone_id, name, boiler_relay, sensor_id FROM zones ORDER BY zone_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []model.Zone
	for rows.Next() {
		var z model.Zone
		var sensorID sql.NullInt64
		err = rows.Scan(&z.ID, &z.Name, &z.BoilerRelay, &sensorID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		if sensorID.Valid {
			z.SensorID = int(sensorID.Int64)
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// GetZone retrieves a single zone, or nil when no such zone exists.
func GetZone(db *sql.DB, id int) (*model.Zone, error) {
	var z model.Zone
	var sensorID sql.NullInt64
	err := db.QueryRow(`SELECT zone_id, name, boiler_relay, sensor_id FROM zones WHERE zone_id = ?`, id).
		Scan(&z.ID, &z.Name, &z.BoilerRelay, &sensorID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone %d: %w", id, err)
	}
	if sensorID.Valid {
		z.SensorID = int(sensorID.Int64)
	}
	return &z, nil
}

// GetSensors retrieves all sensors.
func GetSensors(db *sql.DB) ([]model.Sensor, error) {
	rows, err := db.Query(`SELECT sensor_id, name, locator, zone FROM sensors ORDER BY sensor_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensors: %w", err)
	}
	defer rows.Close()

	var sensors []model.Sensor
	for rows.Next() {
		var s model.Sensor
		var zone sql.NullInt64
		err = rows.Scan(&s.ID, &s.Name, &s.Locator, &zone)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor: %w", err)
		}
		if zone.Valid {
			s.Zone = int(zone.Int64)
		}
		sensors = append(sensors, s)
	}
	return sensors, nil
}

// GetSensor retrieves a single sensor, or nil when no such sensor exists.
func GetSensor(db *sql.DB, id int) (*model.Sensor, error) {
	var s model.Sensor
	var zone sql.NullInt64
	err := db.QueryRow(`SELECT sensor_id, name, locator, zone FROM sensors WHERE sensor_id = ?`, id).
		Scan(&s.ID, &s.Name, &s.Locator, &zone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sensor %d: %w", id, err)
	}
	if zone.Valid {
		s.Zone = int(zone.Int64)
	}
	return &s, nil
}

func scanScheduleEntries(rows *sql.Rows) ([]schedule.Entry, error) {
	var entries []schedule.Entry
	for rows.Next() {
		var e schedule.Entry
		var starttime string
		err := rows.Scan(&e.Day, &starttime, &e.Zone, &e.Temp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule entry: %w", err)
		}
		e.At, err = schedule.ParseDayTime(starttime)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule entry time: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetSchedule retrieves the programme entries for all zones.
func GetSchedule(db *sql.DB) ([]schedule.Entry, error) {
	rows, err := db.Query(`SELECT day, starttime, zone, temp FROM schedule ORDER BY day, starttime, zone`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

// GetZoneSchedule retrieves the programme entries for one zone.
func GetZoneSchedule(db *sql.DB, zone int) ([]schedule.Entry, error) {
	rows, err := db.Query(`SELECT day, starttime, zone, temp FROM schedule WHERE zone = ? ORDER BY day, starttime`, zone)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule for zone %d: %w", zone, err)
	}
	defer rows.Close()
	return scanScheduleEntries(rows)
}

// GetOverrides retrieves all overrides, including any that have expired.
func GetOverrides(db *sql.DB) ([]schedule.Override, error) {
	rows, err := db.Query(`SELECT zone, temp, until FROM override`)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []schedule.Override
	for rows.Next() {
		var o schedule.Override
		var until string
		err = rows.Scan(&o.Zone, &o.Temp, &until)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		o.Until, err = time.ParseInLocation(schedule.OverrideTimeLayout, until, time.Local)
		if err != nil {
			return nil, fmt.Errorf("failed to parse override expiry: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

// GetOverride retrieves the override for a zone, or nil when none is set.
func GetOverride(db *sql.DB, zone int) (*schedule.Override, error) {
	var o schedule.Override
	var until string
	err := db.QueryRow(`SELECT zone, temp, until FROM override WHERE zone = ?`, zone).
		Scan(&o.Zone, &o.Temp, &until)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get override for zone %d: %w", zone, err)
	}
	o.Until, err = time.ParseInLocation(schedule.OverrideTimeLayout, until, time.Local)
	if err != nil {
		return nil, fmt.Errorf("failed to parse override expiry: %w", err)
	}
	return &o, nil
}

// GetGradients retrieves the aggregated heating rate table for a zone.
// Measurements are bucketed by inside/outside delta to the nearest half
// degree.
func GetGradients(db *sql.DB, zone int) ([]model.GradientRow, error) {
	rows, err := db.Query(`
		SELECT round(2 * delta) / 2 AS d, avg(gradient), count(*)
		FROM gradient_measurements
		WHERE zone = ?
		GROUP BY d
		ORDER BY d`, zone)
	if err != nil {
		return nil, fmt.Errorf("failed to query gradients for zone %d: %w", zone, err)
	}
	defer rows.Close()

	var table []model.GradientRow
	for rows.Next() {
		var r model.GradientRow
		err = rows.Scan(&r.Delta, &r.Gradient, &r.NPoints)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gradient row: %w", err)
		}
		table = append(table, r)
	}
	return table, nil
}

// GetReportedState retrieves the most recent state report for a zone, or
// nil when the zone's controller has never reported.
func GetReportedState(db *sql.DB, zone int) (*model.DeviceState, error) {
	var s model.DeviceState
	var received string
	var state sql.NullString
	var target, currentTemp, timeToTarget, outsideTemp, dutyCycle sql.NullFloat64
	err := db.QueryRow(`
		SELECT received, state, target, current_temp, time_to_target, current_outside_temp, dutycycle
		FROM device_reported_state
		WHERE zone = ?
		ORDER BY received DESC
		LIMIT 1`, zone).
		Scan(&received, &state, &target, &currentTemp, &timeToTarget, &outsideTemp, &dutyCycle)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reported state for zone %d: %w", zone, err)
	}

	s.Received, err = time.Parse(timeLayout, received)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reported state timestamp: %w", err)
	}
	if state.Valid {
		s.State = state.String
	}
	if target.Valid {
		s.Target = &target.Float64
	}
	if currentTemp.Valid {
		s.CurrentTemp = &currentTemp.Float64
	}
	if timeToTarget.Valid {
		s.TimeToTarget = &timeToTarget.Float64
	}
	if outsideTemp.Valid {
		s.CurrentOutsideTemp = &outsideTemp.Float64
	}
	if dutyCycle.Valid {
		s.DutyCycle = &dutyCycle.Float64
	}
	return &s, nil
}

// MetricReading is the latest stored value for one sensor metric.
type MetricReading struct {
	When  time.Time
	Value float64
}

// GetLastReadings retrieves the most recent reading per metric type for a
// sensor. Metrics with no readings are absent from the map.
func GetLastReadings(db *sql.DB, sensorID int) (map[string]MetricReading, error) {
	readings := make(map[string]MetricReading)
	for _, metric := range model.SensorMetricTypes {
		var when string
		var value float64
		err := db.QueryRow(`
			SELECT time, value FROM sensor_readings
			WHERE sensor_id = ? AND metric_type = ?
			ORDER BY time DESC
			LIMIT 1`, sensorID, metric).Scan(&when, &value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s reading for sensor %d: %w", metric, sensorID, err)
		}
		parsed, err := time.Parse(timeLayout, when)
		if err != nil {
			return nil, fmt.Errorf("failed to parse reading timestamp: %w", err)
		}
		readings[metric] = MetricReading{When: parsed, Value: value}
	}
	return readings, nil
}

// GetDeviceSecret retrieves the stored credentials for a device, or empty
// strings when the device is unknown.
func GetDeviceSecret(db *sql.DB, id int) (salt, hash string, err error) {
	err = db.QueryRow(`SELECT secret_salt, secret_hash FROM devices WHERE device_id = ?`, id).
		Scan(&salt, &hash)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get device %d: %w", id, err)
	}
	return salt, hash, nil
}
